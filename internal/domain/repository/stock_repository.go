package repository

import (
	"context"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
)

// StockRepository puerto del libro de stock por (producto, tienda).
// Toda mutación es atómica por clave en el almacenamiento: nunca leer y luego escribir.
type StockRepository interface {
	// GetQuantity cantidad disponible; 0 si el producto no está en la tienda.
	GetQuantity(ctx context.Context, productID, storeID string) (int, error)
	// Get registro completo; nil si no existe.
	Get(ctx context.Context, productID, storeID string) (*entity.StockRecord, error)
	// Decrement resta amount solo si hay suficiente; si no, *domain.StockShortageError.
	Decrement(ctx context.Context, productID, storeID string, amount int) (int, error)
	// DecrementUpTo resta min(cantidad, amount) y devuelve lo aplicado (política backorder).
	DecrementUpTo(ctx context.Context, productID, storeID string, amount int) (applied, newQty int, err error)
	// Increment suma amount; solo se usa para compensar un descuento propio.
	Increment(ctx context.Context, productID, storeID string, amount int) (int, error)
	// AggregateQuantity suma la cantidad del producto en las tiendas indicadas.
	AggregateQuantity(ctx context.Context, productID string, storeIDs []string) (int, error)
	// ListByStores registros de stock de las tiendas indicadas.
	ListByStores(ctx context.Context, storeIDs []string) ([]*entity.StockRecord, error)
}
