// Package memory implementa todos los puertos de persistencia en memoria.
// Se usa en modo desarrollo (Storage.Driver=memory) y en las pruebas de los casos de uso.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

type stockKey struct {
	productID string
	storeID   string
}

type idemKey struct {
	storeID string
	key     string
}

// Store almacén en memoria. Un único RWMutex protege todo; RunSale lo mantiene tomado
// durante la transacción, así que las transacciones son serializables.
type Store struct {
	mu           sync.RWMutex
	stores       map[string]entity.Store
	products     map[string]entity.Product
	stock        map[stockKey]entity.StockRecord
	sales        map[string]*entity.Sale
	saleNumbers  map[string]string
	salesByIdem  map[idemKey]string
	itemSale     map[string]string
	recon        []*entity.ReconciliationEntry
	movements    []*entity.InventoryMovement
	movementKeys map[movementKey]struct{}
	now          func() time.Time
}

// New almacén vacío.
func New() *Store {
	return &Store{
		stores:       make(map[string]entity.Store),
		products:     make(map[string]entity.Product),
		stock:        make(map[stockKey]entity.StockRecord),
		sales:        make(map[string]*entity.Sale),
		saleNumbers:  make(map[string]string),
		salesByIdem:  make(map[idemKey]string),
		itemSale:     make(map[string]string),
		movementKeys: make(map[movementKey]struct{}),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded almacén con dos tiendas, un catálogo corto y stock inicial para modo desarrollo.
func NewSeeded() *Store {
	s := New()
	s.PutStore(entity.Store{ID: "S1", Name: "Tienda Centro", Address: "Calle 10 # 5-20", Active: true})
	s.PutStore(entity.Store{ID: "S2", Name: "Tienda Norte", Address: "Av. 68 # 100-15", Active: true})

	for _, p := range []entity.Product{
		{ID: "P-CAFE", SKU: "CAFE-500", Name: "Café molido 500g", Price: decimal.RequireFromString("18500"), Active: true},
		{ID: "P-ARROZ", SKU: "ARROZ-1K", Name: "Arroz 1kg", Price: decimal.RequireFromString("4200"), Active: true},
		{ID: "P-ACEITE", SKU: "ACEITE-1L", Name: "Aceite 1L", Price: decimal.RequireFromString("11900"), Active: true},
		{ID: "P-PANELA", SKU: "PANELA-500", Name: "Panela 500g", Price: decimal.RequireFromString("3500"), Active: true},
	} {
		s.PutProduct(p)
	}

	s.SetStock("P-CAFE", "S1", 40, 10)
	s.SetStock("P-ARROZ", "S1", 120, 30)
	s.SetStock("P-ACEITE", "S1", 6, 10)
	s.SetStock("P-CAFE", "S2", 8, 10)
	s.SetStock("P-PANELA", "S2", 0, 15)
	return s
}

// WithClock reemplaza el reloj (pruebas).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// PutStore crea o reemplaza una tienda.
func (s *Store) PutStore(st entity.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}
	st.UpdatedAt = s.now()
	s.stores[st.ID] = st
}

// PutProduct crea o reemplaza un producto.
func (s *Store) PutProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
}

// SetStock fija cantidad y umbral de un producto en una tienda (carga inicial).
func (s *Store) SetStock(productID, storeID string, quantity, minThreshold int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{productID, storeID}] = entity.StockRecord{
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     quantity,
		MinThreshold: minThreshold,
		UpdatedAt:    s.now(),
	}
}

// Stock repositorio de stock sin transacción.
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

// Sales repositorio de ventas sin transacción.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

// Movements diario de movimientos sin transacción.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

// Stores repositorio de tiendas.
func (s *Store) Stores() repository.StoreRepository { return &StoreRepo{s: s} }

// Products repositorio de productos.
func (s *Store) Products() repository.ProductRepository { return &ProductRepo{s: s} }

// Reconciliation registro de conciliación.
func (s *Store) Reconciliation() repository.ReconciliationRepository { return &ReconciliationRepo{s: s} }

// RunSale ejecuta fn con repos atados a una transacción en memoria. Las escrituras se
// deshacen en orden inverso si fn devuelve error o el contexto venció antes del commit.
func (s *Store) RunSale(ctx context.Context, fn func(
	saleRepo repository.SaleRepository,
	stockRepo repository.StockRepository,
	movRepo repository.InventoryMovementRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &journal{}
	committed := false
	defer func() {
		if !committed {
			tx.undo()
		}
	}()

	if err := fn(&SaleRepo{s: s, tx: tx}, &StockRepo{s: s, tx: tx}, &MovementRepo{s: s, tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

// journal acciones para deshacer las escrituras de una transacción.
type journal struct {
	undos []func()
}

func (j *journal) record(undo func()) {
	if j != nil {
		j.undos = append(j.undos, undo)
	}
}

func (j *journal) undo() {
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
	j.undos = nil
}

// StoreRepo lectura de tiendas.
type StoreRepo struct{ s *Store }

var _ repository.StoreRepository = (*StoreRepo)(nil)

func (r *StoreRepo) GetByID(_ context.Context, id string) (*entity.Store, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.stores[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *StoreRepo) List(_ context.Context) ([]*entity.Store, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Store, 0, len(r.s.stores))
	for _, st := range r.s.stores {
		st := st
		out = append(out, &st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ProductRepo lectura del catálogo.
type ProductRepo struct{ s *Store }

var _ repository.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProductRepo) ListActive(_ context.Context) ([]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		if !p.Active {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

// ReconciliationRepo registro de ventas expuestas a medias.
type ReconciliationRepo struct{ s *Store }

var _ repository.ReconciliationRepository = (*ReconciliationRepo)(nil)

func (r *ReconciliationRepo) Record(_ context.Context, entry *entity.ReconciliationEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *entry
	cp.StepsCompleted = append([]string(nil), entry.StepsCompleted...)
	cp.Lines = append([]entity.ReconciliationLine(nil), entry.Lines...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.s.now()
	}
	r.s.recon = append(r.s.recon, &cp)
	return nil
}

// List más recientes primero.
func (r *ReconciliationRepo) List(_ context.Context, limit int) ([]*entity.ReconciliationEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.ReconciliationEntry, 0, len(r.s.recon))
	for i := len(r.s.recon) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *r.s.recon[i]
		out = append(out, &cp)
	}
	return out, nil
}
