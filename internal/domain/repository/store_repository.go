package repository

import (
	"context"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
)

// StoreRepository puerto de lectura de tiendas.
type StoreRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Store, error)
	List(ctx context.Context) ([]*entity.Store, error)
}
