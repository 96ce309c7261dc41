package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*MovementRepo)(nil)

type movementKey struct {
	saleID    string
	productID string
	storeID   string
	kind      string
}

// MovementRepo diario de movimientos. Misma restricción única que el esquema SQL:
// (sale_id, product_id, store_id, type).
type MovementRepo struct {
	s  *Store
	tx *journal
}

func (r *MovementRepo) lock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *MovementRepo) rlock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *MovementRepo) Create(_ context.Context, m *entity.InventoryMovement) error {
	if m.Quantity <= 0 || (m.Type != entity.MovementTypeIN && m.Type != entity.MovementTypeOUT) {
		return domain.ErrInvalidInput
	}
	defer r.lock()()

	key := movementKey{m.SaleID, m.ProductID, m.StoreID, m.Type}
	if _, ok := r.s.movementKeys[key]; ok {
		return domain.ErrDuplicate
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.s.now()
	}
	cp := *m
	r.s.movements = append(r.s.movements, &cp)
	r.s.movementKeys[key] = struct{}{}

	n := len(r.s.movements) - 1
	r.tx.record(func() {
		r.s.movements = r.s.movements[:n]
		delete(r.s.movementKeys, key)
	})
	return nil
}

func (r *MovementRepo) ListBySale(_ context.Context, saleID string) ([]*entity.InventoryMovement, error) {
	defer r.rlock()()
	out := make([]*entity.InventoryMovement, 0)
	for _, m := range r.s.movements {
		if m.SaleID != saleID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}
