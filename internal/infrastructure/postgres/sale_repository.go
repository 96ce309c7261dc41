package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo implementación de SaleRepository sobre PostgreSQL (usable con pool o tx).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador de ventas. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

const saleColumns = `
	id, sale_number, store_id, seller_id, subtotal, tax_amount, discount_amount, total,
	status, payment_method, customer_name, customer_email, customer_phone, notes,
	COALESCE(idempotency_key, ''), created_at`

// Create persiste la cabecera de la venta.
func (r *SaleRepo) Create(ctx context.Context, sale *entity.Sale) error {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}
	query := `
		INSERT INTO sales (id, sale_number, store_id, seller_id, subtotal, tax_amount, discount_amount, total,
			status, payment_method, customer_name, customer_email, customer_phone, notes, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		sale.ID, sale.SaleNumber, sale.StoreID, sale.SellerID,
		sale.Subtotal, sale.TaxAmount, sale.DiscountAmount, sale.Total,
		sale.Status, sale.PaymentMethod, sale.CustomerName, sale.CustomerEmail, sale.CustomerPhone, sale.Notes,
		nullIfEmpty(sale.IdempotencyKey), sale.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: tienda %s inexistente", domain.ErrInvalidInput, sale.StoreID)
		}
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// CreateItems persiste las líneas de la venta.
func (r *SaleRepo) CreateItems(ctx context.Context, saleID string, items []*entity.SaleItem) error {
	query := `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price, total_price, backordered_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		it.SaleID = saleID
		_, err := r.q.Exec(ctx, query,
			it.ID, saleID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice, it.BackorderedQuantity,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicate
			}
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: producto %s inexistente", domain.ErrInvalidInput, it.ProductID)
			}
			return fmt.Errorf("insert sale item: %w", err)
		}
	}
	return nil
}

// SetBackordered registra las unidades vendidas sin stock en una línea.
func (r *SaleRepo) SetBackordered(ctx context.Context, itemID string, quantity int) error {
	tag, err := r.q.Exec(ctx, `UPDATE sale_items SET backordered_quantity = $2 WHERE id = $1`, itemID, quantity)
	if err != nil {
		return fmt.Errorf("update backordered quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina la venta y sus líneas (ON DELETE CASCADE). Idempotente.
func (r *SaleRepo) Delete(ctx context.Context, saleID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM sales WHERE id = $1`, saleID); err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	return nil
}

// GetByID cabecera con líneas; nil si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	return r.getOne(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

// GetByIdempotencyKey venta previa de la tienda con la misma clave; nil si no existe.
func (r *SaleRepo) GetByIdempotencyKey(ctx context.Context, storeID, key string) (*entity.Sale, error) {
	if key == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+saleColumns+` FROM sales WHERE store_id = $1 AND idempotency_key = $2`, storeID, key)
}

func (r *SaleRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Sale, error) {
	s, err := scanSale(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	items, err := r.items(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return s, nil
}

func (r *SaleRepo) items(ctx context.Context, saleID string) ([]*entity.SaleItem, error) {
	query := `
		SELECT id, sale_id, product_id, quantity, unit_price, total_price, backordered_quantity
		FROM sale_items WHERE sale_id = $1 ORDER BY product_id, id`
	rows, err := r.q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.SaleItem, 0)
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.BackorderedQuantity); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// ListByStores ventas de las tiendas, más recientes primero, sin líneas. limit 0 = sin límite.
func (r *SaleRepo) ListByStores(ctx context.Context, storeIDs []string, limit, offset int) ([]*entity.Sale, int, error) {
	if len(storeIDs) == 0 {
		return []*entity.Sale{}, 0, nil
	}
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE store_id = ANY($1)`, storeIDs).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	var lim *int
	if limit > 0 {
		lim = &limit
	}
	query := `SELECT ` + saleColumns + `
		FROM sales WHERE store_id = ANY($1)
		ORDER BY created_at DESC, sale_number DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, storeIDs, lim, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Sale, 0)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func scanSale(row pgx.Row) (*entity.Sale, error) {
	var s entity.Sale
	err := row.Scan(
		&s.ID, &s.SaleNumber, &s.StoreID, &s.SellerID,
		&s.Subtotal, &s.TaxAmount, &s.DiscountAmount, &s.Total,
		&s.Status, &s.PaymentMethod, &s.CustomerName, &s.CustomerEmail, &s.CustomerPhone, &s.Notes,
		&s.IdempotencyKey, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
