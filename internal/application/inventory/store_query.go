package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-multitienda/internal/application/dto"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

// StoreQueryUseCase tiendas visibles para el actor.
type StoreQueryUseCase struct {
	storeRepo repository.StoreRepository
}

// NewStoreQueryUseCase construye la consulta de tiendas.
func NewStoreQueryUseCase(storeRepo repository.StoreRepository) *StoreQueryUseCase {
	return &StoreQueryUseCase{storeRepo: storeRepo}
}

// VisibleStores todas para admin; las asignadas (y existentes) para el resto.
func (uc *StoreQueryUseCase) VisibleStores(ctx context.Context, actor scope.ActorScope) ([]dto.StoreResponse, error) {
	c := scope.Resolve(actor)
	if c.Empty() {
		return []dto.StoreResponse{}, nil
	}
	stores, err := uc.storeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar tiendas: %w", err)
	}
	out := make([]dto.StoreResponse, 0, len(stores))
	for _, s := range stores {
		if !c.CanActOnStore(s.ID) {
			continue
		}
		out = append(out, dto.StoreResponse{
			ID:        s.ID,
			Name:      s.Name,
			Address:   s.Address,
			Active:    s.Active,
			CreatedAt: s.CreatedAt,
		})
	}
	return out, nil
}
