package sales

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

// SaleQueryUseCase lecturas de ventas acotadas por el alcance del actor.
type SaleQueryUseCase struct {
	saleRepo  repository.SaleRepository
	storeRepo repository.StoreRepository
	movRepo   repository.InventoryMovementRepository
}

// NewSaleQueryUseCase construye las consultas de ventas.
func NewSaleQueryUseCase(
	saleRepo repository.SaleRepository,
	storeRepo repository.StoreRepository,
	movRepo repository.InventoryMovementRepository,
) *SaleQueryUseCase {
	return &SaleQueryUseCase{saleRepo: saleRepo, storeRepo: storeRepo, movRepo: movRepo}
}

// GetSale devuelve la venta con sus líneas si el actor puede operar sobre su tienda.
func (uc *SaleQueryUseCase) GetSale(ctx context.Context, actor scope.ActorScope, id string) (*entity.Sale, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	s, err := uc.saleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("obtener venta: %w", err)
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	if !scope.Resolve(actor).CanActOnStore(s.StoreID) {
		return nil, domain.ErrPermissionDenied
	}
	return s, nil
}

// ListSales ventas de las tiendas visibles, más recientes primero. Sin tiendas visibles devuelve vacío.
func (uc *SaleQueryUseCase) ListSales(ctx context.Context, actor scope.ActorScope, limit, offset int) ([]*entity.Sale, int, error) {
	storeIDs, err := visibleStoreIDs(ctx, uc.storeRepo, actor)
	if err != nil {
		return nil, 0, err
	}
	if len(storeIDs) == 0 {
		return []*entity.Sale{}, 0, nil
	}
	list, total, err := uc.saleRepo.ListByStores(ctx, storeIDs, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listar ventas: %w", err)
	}
	return list, total, nil
}

// Movements diario de stock de una venta. Una venta compensada ya no existe pero sus
// movimientos sí: en ese caso solo los roles que ven todas las tiendas pueden consultarlos.
func (uc *SaleQueryUseCase) Movements(ctx context.Context, actor scope.ActorScope, saleID string) ([]*entity.InventoryMovement, error) {
	if saleID == "" {
		return nil, domain.ErrInvalidInput
	}
	c := scope.Resolve(actor)
	s, err := uc.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("obtener venta: %w", err)
	}
	switch {
	case s != nil && !c.CanActOnStore(s.StoreID):
		return nil, domain.ErrPermissionDenied
	case s == nil && !c.SeesAllStores():
		return nil, domain.ErrNotFound
	}
	list, err := uc.movRepo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("movimientos de venta: %w", err)
	}
	if s == nil && len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return list, nil
}

// visibleStoreIDs solo consulta el catálogo de tiendas cuando el rol ve todas.
func visibleStoreIDs(ctx context.Context, storeRepo repository.StoreRepository, actor scope.ActorScope) ([]string, error) {
	c := scope.Resolve(actor)
	if !c.SeesAllStores() {
		return c.VisibleStoreIDs(nil), nil
	}
	stores, err := storeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar tiendas: %w", err)
	}
	all := make([]string, 0, len(stores))
	for _, s := range stores {
		all = append(all, s.ID)
	}
	return c.VisibleStoreIDs(all), nil
}

// ReconciliationQueryUseCase lectura del registro de ventas expuestas, para herramientas de reparación.
type ReconciliationQueryUseCase struct {
	repo repository.ReconciliationRepository
}

// NewReconciliationQueryUseCase construye la consulta.
func NewReconciliationQueryUseCase(repo repository.ReconciliationRepository) *ReconciliationQueryUseCase {
	return &ReconciliationQueryUseCase{repo: repo}
}

// List entradas más recientes primero. Solo roles que ven todas las tiendas.
func (uc *ReconciliationQueryUseCase) List(ctx context.Context, actor scope.ActorScope, limit int) ([]*entity.ReconciliationEntry, error) {
	if !scope.Resolve(actor).SeesAllStores() {
		return nil, domain.ErrPermissionDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	list, err := uc.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listar conciliaciones: %w", err)
	}
	return list, nil
}
