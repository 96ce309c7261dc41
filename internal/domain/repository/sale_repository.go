package repository

import (
	"context"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
)

// SaleRepository puerto de persistencia para Sale y sus líneas.
type SaleRepository interface {
	// Create persiste la cabecera y asigna ID si está vacío.
	Create(ctx context.Context, sale *entity.Sale) error
	// CreateItems persiste las líneas de una venta ya creada.
	CreateItems(ctx context.Context, saleID string, items []*entity.SaleItem) error
	// SetBackordered registra las unidades de una línea vendidas sin stock.
	SetBackordered(ctx context.Context, itemID string, quantity int) error
	// Delete elimina cabecera y líneas (compensación de saga).
	Delete(ctx context.Context, saleID string) error
	// GetByID cabecera con líneas; nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// GetByIdempotencyKey venta previa con la misma clave en la tienda; nil si no existe.
	GetByIdempotencyKey(ctx context.Context, storeID, key string) (*entity.Sale, error)
	// ListByStores ventas de las tiendas indicadas, más recientes primero (sin líneas).
	ListByStores(ctx context.Context, storeIDs []string, limit, offset int) ([]*entity.Sale, int, error)
}
