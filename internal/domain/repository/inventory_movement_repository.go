package repository

import (
	"context"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
)

// InventoryMovementRepository diario de movimientos de stock.
type InventoryMovementRepository interface {
	// Create persiste un movimiento y asigna ID si está vacío.
	Create(ctx context.Context, movement *entity.InventoryMovement) error
	// ListBySale movimientos de una venta en orden de registro.
	ListBySale(ctx context.Context, saleID string) ([]*entity.InventoryMovement, error)
}
