package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo ventas y líneas. Las mismas restricciones únicas que el esquema SQL:
// sale_number global e (store_id, idempotency_key).
type SaleRepo struct {
	s  *Store
	tx *journal
}

func (r *SaleRepo) lock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *SaleRepo) rlock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *SaleRepo) Create(_ context.Context, sale *entity.Sale) error {
	defer r.lock()()

	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if _, ok := r.s.sales[sale.ID]; ok {
		return domain.ErrDuplicate
	}
	if _, ok := r.s.saleNumbers[sale.SaleNumber]; ok {
		return domain.ErrDuplicate
	}
	ik := idemKey{sale.StoreID, sale.IdempotencyKey}
	if sale.IdempotencyKey != "" {
		if _, ok := r.s.salesByIdem[ik]; ok {
			return domain.ErrDuplicate
		}
	}

	header := *sale
	header.Items = nil
	r.s.sales[sale.ID] = &header
	r.s.saleNumbers[sale.SaleNumber] = sale.ID
	if sale.IdempotencyKey != "" {
		r.s.salesByIdem[ik] = sale.ID
	}
	r.tx.record(func() { r.removeLocked(sale.ID) })
	return nil
}

func (r *SaleRepo) CreateItems(_ context.Context, saleID string, items []*entity.SaleItem) error {
	defer r.lock()()

	header, ok := r.s.sales[saleID]
	if !ok {
		return domain.ErrNotFound
	}
	prevLen := len(header.Items)
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if _, dup := r.s.itemSale[it.ID]; dup {
			return domain.ErrDuplicate
		}
	}
	for _, it := range items {
		it.SaleID = saleID
		cp := *it
		header.Items = append(header.Items, &cp)
		r.s.itemSale[it.ID] = saleID
	}
	r.tx.record(func() {
		for _, it := range header.Items[prevLen:] {
			delete(r.s.itemSale, it.ID)
		}
		header.Items = header.Items[:prevLen]
	})
	return nil
}

func (r *SaleRepo) SetBackordered(_ context.Context, itemID string, quantity int) error {
	defer r.lock()()

	header, ok := r.s.sales[r.s.itemSale[itemID]]
	if !ok {
		return domain.ErrNotFound
	}
	for _, it := range header.Items {
		if it.ID != itemID {
			continue
		}
		prev := it.BackorderedQuantity
		it.BackorderedQuantity = quantity
		r.tx.record(func() { it.BackorderedQuantity = prev })
		return nil
	}
	return domain.ErrNotFound
}

// Delete es idempotente: borrar una venta inexistente no es error.
func (r *SaleRepo) Delete(_ context.Context, saleID string) error {
	defer r.lock()()

	header, ok := r.s.sales[saleID]
	if !ok {
		return nil
	}
	r.removeLocked(saleID)
	r.tx.record(func() {
		r.s.sales[saleID] = header
		r.s.saleNumbers[header.SaleNumber] = saleID
		if header.IdempotencyKey != "" {
			r.s.salesByIdem[idemKey{header.StoreID, header.IdempotencyKey}] = saleID
		}
		for _, it := range header.Items {
			r.s.itemSale[it.ID] = saleID
		}
	})
	return nil
}

func (r *SaleRepo) removeLocked(saleID string) {
	header, ok := r.s.sales[saleID]
	if !ok {
		return
	}
	for _, it := range header.Items {
		delete(r.s.itemSale, it.ID)
	}
	delete(r.s.saleNumbers, header.SaleNumber)
	if header.IdempotencyKey != "" {
		delete(r.s.salesByIdem, idemKey{header.StoreID, header.IdempotencyKey})
	}
	delete(r.s.sales, saleID)
}

func (r *SaleRepo) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	defer r.rlock()()
	header, ok := r.s.sales[id]
	if !ok {
		return nil, nil
	}
	return cloneSale(header, true), nil
}

func (r *SaleRepo) GetByIdempotencyKey(_ context.Context, storeID, key string) (*entity.Sale, error) {
	defer r.rlock()()
	id, ok := r.s.salesByIdem[idemKey{storeID, key}]
	if !ok {
		return nil, nil
	}
	return cloneSale(r.s.sales[id], true), nil
}

func (r *SaleRepo) ListByStores(_ context.Context, storeIDs []string, limit, offset int) ([]*entity.Sale, int, error) {
	defer r.rlock()()
	wanted := make(map[string]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		wanted[id] = struct{}{}
	}
	all := make([]*entity.Sale, 0)
	for _, s := range r.s.sales {
		if _, ok := wanted[s.StoreID]; ok {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].SaleNumber > all[j].SaleNumber
	})

	total := len(all)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]*entity.Sale, 0, end-offset)
	for _, s := range all[offset:end] {
		out = append(out, cloneSale(s, false))
	}
	return out, total, nil
}

func cloneSale(src *entity.Sale, withItems bool) *entity.Sale {
	cp := *src
	cp.Items = nil
	if withItems {
		cp.Items = make([]*entity.SaleItem, 0, len(src.Items))
		for _, it := range src.Items {
			item := *it
			cp.Items = append(cp.Items, &item)
		}
	}
	return &cp
}
