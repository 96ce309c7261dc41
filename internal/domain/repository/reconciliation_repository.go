package repository

import (
	"context"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
)

// ReconciliationRepository registro de ventas expuestas a medias para reparación externa.
// Se escribe fuera de la transacción de la venta.
type ReconciliationRepository interface {
	Record(ctx context.Context, entry *entity.ReconciliationEntry) error
	List(ctx context.Context, limit int) ([]*entity.ReconciliationEntry, error)
}
