package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
// Cada mutación es una única sentencia condicional: nunca SELECT y luego UPDATE.
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// GetQuantity cantidad disponible; 0 si no hay registro.
func (r *StockRepo) GetQuantity(ctx context.Context, productID, storeID string) (int, error) {
	query := `SELECT quantity FROM stock_records WHERE product_id = $1 AND store_id = $2`
	var qty int
	err := r.q.QueryRow(ctx, query, productID, storeID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get stock quantity: %w", err)
	}
	return qty, nil
}

// Get obtiene el registro de stock; nil si no existe.
func (r *StockRepo) Get(ctx context.Context, productID, storeID string) (*entity.StockRecord, error) {
	query := `
		SELECT product_id, store_id, quantity, min_threshold, reserved_quantity, updated_at
		FROM stock_records WHERE product_id = $1 AND store_id = $2`
	var s entity.StockRecord
	err := r.q.QueryRow(ctx, query, productID, storeID).Scan(
		&s.ProductID, &s.StoreID, &s.Quantity, &s.MinThreshold, &s.ReservedQuantity, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &s, nil
}

// Decrement resta amount solo si la cantidad alcanza. La fila queda bloqueada hasta el fin
// de la transacción, así dos ventas concurrentes sobre el mismo (producto, tienda) se serializan.
func (r *StockRepo) Decrement(ctx context.Context, productID, storeID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidInput
	}
	query := `
		UPDATE stock_records
		SET quantity = quantity - $3, updated_at = now()
		WHERE product_id = $1 AND store_id = $2 AND quantity >= $3
		RETURNING quantity`
	var qty int
	err := r.q.QueryRow(ctx, query, productID, storeID, amount).Scan(&qty)
	if err == nil {
		return qty, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	// Ninguna fila cumplió la condición: sin registro o cantidad insuficiente.
	available, gerr := r.GetQuantity(ctx, productID, storeID)
	if gerr != nil {
		return 0, gerr
	}
	return 0, &domain.StockShortageError{
		ProductID: productID,
		StoreID:   storeID,
		Requested: amount,
		Available: available,
	}
}

// DecrementUpTo resta min(cantidad, amount). Sin registro o sin stock no aplica nada.
func (r *StockRepo) DecrementUpTo(ctx context.Context, productID, storeID string, amount int) (int, int, error) {
	if amount <= 0 {
		return 0, 0, domain.ErrInvalidInput
	}
	query := `
		WITH cur AS (
			SELECT quantity FROM stock_records
			WHERE product_id = $1 AND store_id = $2 AND quantity > 0
			FOR UPDATE
		)
		UPDATE stock_records s
		SET quantity = s.quantity - LEAST(cur.quantity, $3), updated_at = now()
		FROM cur
		WHERE s.product_id = $1 AND s.store_id = $2
		RETURNING cur.quantity - s.quantity, s.quantity`
	var applied, qty int
	err := r.q.QueryRow(ctx, query, productID, storeID, amount).Scan(&applied, &qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("decrement stock up to: %w", err)
	}
	return applied, qty, nil
}

// Increment suma amount (crea el registro si no existe). Solo para compensar descuentos propios.
func (r *StockRepo) Increment(ctx context.Context, productID, storeID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidInput
	}
	query := `
		INSERT INTO stock_records (product_id, store_id, quantity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (product_id, store_id)
		DO UPDATE SET quantity = stock_records.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING quantity`
	var qty int
	if err := r.q.QueryRow(ctx, query, productID, storeID, amount).Scan(&qty); err != nil {
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return qty, nil
}

// AggregateQuantity suma la cantidad del producto en las tiendas indicadas.
func (r *StockRepo) AggregateQuantity(ctx context.Context, productID string, storeIDs []string) (int, error) {
	if len(storeIDs) == 0 {
		return 0, nil
	}
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_records WHERE product_id = $1 AND store_id = ANY($2)`
	var total int
	if err := r.q.QueryRow(ctx, query, productID, storeIDs).Scan(&total); err != nil {
		return 0, fmt.Errorf("aggregate stock: %w", err)
	}
	return total, nil
}

// ListByStores registros de las tiendas indicadas, ordenados por tienda y producto.
func (r *StockRepo) ListByStores(ctx context.Context, storeIDs []string) ([]*entity.StockRecord, error) {
	if len(storeIDs) == 0 {
		return []*entity.StockRecord{}, nil
	}
	query := `
		SELECT product_id, store_id, quantity, min_threshold, reserved_quantity, updated_at
		FROM stock_records WHERE store_id = ANY($1)
		ORDER BY store_id, product_id`
	rows, err := r.q.Query(ctx, query, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.StockRecord, 0)
	for rows.Next() {
		var s entity.StockRecord
		if err := rows.Scan(&s.ProductID, &s.StoreID, &s.Quantity, &s.MinThreshold, &s.ReservedQuantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
