package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	domaininv "github.com/jhoicas/pos-multitienda/internal/domain/inventory"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo libro de stock. Con tx != nil el lock ya lo tiene RunSale.
type StockRepo struct {
	s  *Store
	tx *journal
}

func (r *StockRepo) lock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *StockRepo) rlock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *StockRepo) GetQuantity(_ context.Context, productID, storeID string) (int, error) {
	defer r.rlock()()
	return r.s.stock[stockKey{productID, storeID}].Quantity, nil
}

func (r *StockRepo) Get(_ context.Context, productID, storeID string) (*entity.StockRecord, error) {
	defer r.rlock()()
	rec, ok := r.s.stock[stockKey{productID, storeID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *StockRepo) Decrement(_ context.Context, productID, storeID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidInput
	}
	defer r.lock()()

	key := stockKey{productID, storeID}
	rec, ok := r.s.stock[key]
	if !ok || rec.Quantity < amount {
		return 0, &domain.StockShortageError{
			ProductID: productID,
			StoreID:   storeID,
			Requested: amount,
			Available: rec.Quantity,
		}
	}
	r.write(key, rec, rec.Quantity-amount)
	return rec.Quantity - amount, nil
}

func (r *StockRepo) DecrementUpTo(_ context.Context, productID, storeID string, amount int) (int, int, error) {
	if amount <= 0 {
		return 0, 0, domain.ErrInvalidInput
	}
	defer r.lock()()

	key := stockKey{productID, storeID}
	rec, ok := r.s.stock[key]
	if !ok || rec.Quantity <= 0 {
		return 0, rec.Quantity, nil
	}
	applied := min(amount, rec.Quantity)
	r.write(key, rec, rec.Quantity-applied)
	return applied, rec.Quantity - applied, nil
}

// Increment crea el registro si no existe.
func (r *StockRepo) Increment(_ context.Context, productID, storeID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidInput
	}
	defer r.lock()()

	key := stockKey{productID, storeID}
	rec, ok := r.s.stock[key]
	if !ok {
		rec = entity.StockRecord{ProductID: productID, StoreID: storeID}
		r.s.stock[key] = rec
		r.tx.record(func() { delete(r.s.stock, key) })
	}
	r.write(key, rec, rec.Quantity+amount)
	return rec.Quantity + amount, nil
}

func (r *StockRepo) write(key stockKey, prev entity.StockRecord, qty int) {
	next := prev
	next.Quantity = qty
	next.UpdatedAt = r.s.now()
	r.s.stock[key] = next
	r.tx.record(func() { r.s.stock[key] = prev })
}

func (r *StockRepo) AggregateQuantity(_ context.Context, productID string, storeIDs []string) (int, error) {
	defer r.rlock()()
	records := make([]*entity.StockRecord, 0, len(storeIDs))
	for _, id := range storeIDs {
		if rec, ok := r.s.stock[stockKey{productID, id}]; ok {
			records = append(records, &rec)
		}
	}
	return domaininv.Aggregate(records, productID, storeIDs), nil
}

// ListByStores ordenado por tienda y producto.
func (r *StockRepo) ListByStores(_ context.Context, storeIDs []string) ([]*entity.StockRecord, error) {
	defer r.rlock()()
	wanted := make(map[string]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		wanted[id] = struct{}{}
	}
	out := make([]*entity.StockRecord, 0)
	for _, rec := range r.s.stock {
		if _, ok := wanted[rec.StoreID]; !ok {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreID != out[j].StoreID {
			return out[i].StoreID < out[j].StoreID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}
