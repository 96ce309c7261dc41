package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-multitienda/internal/application/dto"
	domaininv "github.com/jhoicas/pos-multitienda/internal/domain/inventory"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

// ProductQueryUseCase catálogo filtrado y anotado según el rol del actor.
type ProductQueryUseCase struct {
	productRepo repository.ProductRepository
	stockRepo   repository.StockRepository
	storeRepo   repository.StoreRepository
}

// NewProductQueryUseCase construye la consulta de catálogo.
func NewProductQueryUseCase(
	productRepo repository.ProductRepository,
	stockRepo repository.StockRepository,
	storeRepo repository.StoreRepository,
) *ProductQueryUseCase {
	return &ProductQueryUseCase{productRepo: productRepo, stockRepo: stockRepo, storeRepo: storeRepo}
}

// VisibleProducts admin: todos los activos con stock total; manager: todos con stock por tienda asignada;
// seller: solo los que tienen stock positivo en alguna tienda asignada.
func (uc *ProductQueryUseCase) VisibleProducts(ctx context.Context, actor scope.ActorScope) ([]dto.VisibleProductDTO, error) {
	c := scope.Resolve(actor)
	if c.Empty() {
		return []dto.VisibleProductDTO{}, nil
	}
	storeIDs, err := visibleStores(ctx, uc.storeRepo, c)
	if err != nil {
		return nil, err
	}
	products, err := uc.productRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("catálogo: %w", err)
	}
	records, err := uc.stockRepo.ListByStores(ctx, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("stock por tiendas: %w", err)
	}

	byProduct := make(map[string]map[string]int, len(products))
	for _, r := range records {
		if byProduct[r.ProductID] == nil {
			byProduct[r.ProductID] = make(map[string]int)
		}
		byProduct[r.ProductID][r.StoreID] += r.Quantity
	}

	mode := c.ProductVisibility()
	out := make([]dto.VisibleProductDTO, 0, len(products))
	for _, p := range products {
		perStore := byProduct[p.ID]
		item := dto.VisibleProductDTO{
			ID:         p.ID,
			SKU:        p.SKU,
			Name:       p.Name,
			Price:      p.Price,
			TotalStock: domaininv.Aggregate(records, p.ID, storeIDs),
		}

		switch mode {
		case scope.ProductsAll:
		case scope.ProductsWithStoreStock:
			item.StoreStock = storeStock(perStore, storeIDs)
		case scope.ProductsInStockOnly:
			if !anyPositive(perStore) {
				continue
			}
			item.StoreStock = storeStock(perStore, storeIDs)
		default:
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// storeStock incluye todas las tiendas visibles; las que no tienen registro valen 0.
func storeStock(perStore map[string]int, storeIDs []string) map[string]int {
	out := make(map[string]int, len(storeIDs))
	for _, id := range storeIDs {
		out[id] = perStore[id]
	}
	return out
}

func anyPositive(perStore map[string]int) bool {
	for _, q := range perStore {
		if q > 0 {
			return true
		}
	}
	return false
}
