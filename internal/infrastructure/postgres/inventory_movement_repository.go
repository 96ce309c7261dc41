package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*InventoryMovementRepo)(nil)

// InventoryMovementRepo implementación sobre PostgreSQL (usable con pool o tx).
type InventoryMovementRepo struct {
	q Querier
}

// NewInventoryMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryMovementRepository(q Querier) *InventoryMovementRepo {
	return &InventoryMovementRepo{q: q}
}

// Create persiste un movimiento. Un segundo movimiento del mismo tipo para la misma
// venta y (producto, tienda) es domain.ErrDuplicate.
func (r *InventoryMovementRepo) Create(ctx context.Context, m *entity.InventoryMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO inventory_movements (id, sale_id, product_id, store_id, type, quantity, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.SaleID, m.ProductID, m.StoreID, m.Type, m.Quantity, m.CreatedAt, nullIfEmpty(m.CreatedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: producto %s o tienda %s inexistente", domain.ErrInvalidInput, m.ProductID, m.StoreID)
		}
		return fmt.Errorf("create inventory movement: %w", err)
	}
	return nil
}

// ListBySale movimientos de una venta, los más antiguos primero.
func (r *InventoryMovementRepo) ListBySale(ctx context.Context, saleID string) ([]*entity.InventoryMovement, error) {
	query := `
		SELECT id, sale_id, product_id, store_id, type, quantity, created_at, COALESCE(created_by, '')
		FROM inventory_movements WHERE sale_id = $1
		ORDER BY created_at, type DESC, product_id`
	rows, err := r.q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("list movements by sale: %w", err)
	}
	defer rows.Close()

	list := make([]*entity.InventoryMovement, 0)
	for rows.Next() {
		var m entity.InventoryMovement
		if err := rows.Scan(&m.ID, &m.SaleID, &m.ProductID, &m.StoreID, &m.Type,
			&m.Quantity, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
