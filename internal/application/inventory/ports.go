package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

// visibleStores tiendas sobre las que el actor puede consultar. El catálogo de tiendas
// solo se lee para roles que ven todas.
func visibleStores(ctx context.Context, storeRepo repository.StoreRepository, c scope.Capability) ([]string, error) {
	if !c.SeesAllStores() {
		return c.VisibleStoreIDs(nil), nil
	}
	stores, err := storeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar tiendas: %w", err)
	}
	all := make([]string, 0, len(stores))
	for _, s := range stores {
		all = append(all, s.ID)
	}
	return c.VisibleStoreIDs(all), nil
}
