package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/pos-multitienda/internal/application/dto"
	domaininv "github.com/jhoicas/pos-multitienda/internal/domain/inventory"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

// idealMultiple stock ideal tras reponer, en múltiplos del umbral mínimo.
const idealMultiple = 3

// LowStock lista de reposición sobre las tiendas visibles: registros agotados o bajos,
// con cantidad sugerida y prioridad (1 = más urgente).
func (uc *StockQueryUseCase) LowStock(ctx context.Context, actor scope.ActorScope) ([]dto.LowStockDTO, error) {
	storeIDs, err := visibleStores(ctx, uc.storeRepo, scope.Resolve(actor))
	if err != nil {
		return nil, err
	}
	if len(storeIDs) == 0 {
		return []dto.LowStockDTO{}, nil
	}

	// 1. Registros de las tiendas visibles
	records, err := uc.stockRepo.ListByStores(ctx, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("stock por tiendas: %w", err)
	}
	products, err := uc.productIndex(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Solo agotados y bajos
	out := make([]dto.LowStockDTO, 0)
	for _, r := range records {
		if !domaininv.Classify(r.Quantity, r.MinThreshold).NeedsReplenishment() {
			continue
		}
		suggested := r.MinThreshold*idealMultiple - r.Quantity
		if suggested < 0 {
			suggested = 0
		}
		out = append(out, dto.LowStockDTO{
			StockLevelDTO:     toLevelDTO(r, products[r.ProductID]),
			SuggestedOrderQty: suggested,
		})
	}

	// 3. Agotados primero, luego mayor déficit frente al umbral, luego producto/tienda
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aOut, bOut := a.Quantity <= 0, b.Quantity <= 0
		if aOut != bOut {
			return aOut
		}
		defA, defB := a.MinThreshold-a.Quantity, b.MinThreshold-b.Quantity
		if defA != defB {
			return defA > defB
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.StoreID < b.StoreID
	})

	// 4. Prioridad
	for i := range out {
		out[i].Priority = i + 1
	}
	return out, nil
}
