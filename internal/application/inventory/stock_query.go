package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/pos-multitienda/internal/application/dto"
	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	domaininv "github.com/jhoicas/pos-multitienda/internal/domain/inventory"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

// StockQueryUseCase vistas de stock por tienda acotadas por rol.
type StockQueryUseCase struct {
	stockRepo   repository.StockRepository
	storeRepo   repository.StoreRepository
	productRepo repository.ProductRepository
}

// NewStockQueryUseCase construye las consultas de stock.
func NewStockQueryUseCase(
	stockRepo repository.StockRepository,
	storeRepo repository.StoreRepository,
	productRepo repository.ProductRepository,
) *StockQueryUseCase {
	return &StockQueryUseCase{
		stockRepo:   stockRepo,
		storeRepo:   storeRepo,
		productRepo: productRepo,
	}
}

// StockLevels stock clasificado de una tienda. Requiere poder operar sobre ella.
func (uc *StockQueryUseCase) StockLevels(ctx context.Context, actor scope.ActorScope, storeID string) ([]dto.StockLevelDTO, error) {
	if storeID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !scope.Resolve(actor).CanActOnStore(storeID) {
		return nil, domain.ErrPermissionDenied
	}
	records, err := uc.stockRepo.ListByStores(ctx, []string{storeID})
	if err != nil {
		return nil, fmt.Errorf("stock de tienda: %w", err)
	}
	products, err := uc.productIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.StockLevelDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toLevelDTO(r, products[r.ProductID]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// ProductStock stock de un producto en cada tienda visible (0 donde no tiene registro) y su total.
func (uc *StockQueryUseCase) ProductStock(ctx context.Context, actor scope.ActorScope, productID string) (dto.ProductStockDTO, error) {
	if productID == "" {
		return dto.ProductStockDTO{}, domain.ErrInvalidInput
	}
	p, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return dto.ProductStockDTO{}, fmt.Errorf("obtener producto: %w", err)
	}
	if p == nil {
		return dto.ProductStockDTO{}, domain.ErrNotFound
	}
	storeIDs, err := visibleStores(ctx, uc.storeRepo, scope.Resolve(actor))
	if err != nil {
		return dto.ProductStockDTO{}, err
	}

	out := dto.ProductStockDTO{
		ProductID:   p.ID,
		ProductName: p.Name,
		SKU:         p.SKU,
		Stores:      make([]dto.StockLevelDTO, 0, len(storeIDs)),
	}
	for _, storeID := range storeIDs {
		rec, err := uc.stockRepo.Get(ctx, productID, storeID)
		if err != nil {
			return dto.ProductStockDTO{}, fmt.Errorf("stock %s/%s: %w", productID, storeID, err)
		}
		if rec == nil {
			rec = &entity.StockRecord{ProductID: productID, StoreID: storeID}
		}
		out.Stores = append(out.Stores, toLevelDTO(rec, p))
	}
	if out.TotalStock, err = uc.stockRepo.AggregateQuantity(ctx, productID, storeIDs); err != nil {
		return dto.ProductStockDTO{}, fmt.Errorf("stock total: %w", err)
	}
	return out, nil
}

func (uc *StockQueryUseCase) productIndex(ctx context.Context) (map[string]*entity.Product, error) {
	list, err := uc.productRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("catálogo: %w", err)
	}
	idx := make(map[string]*entity.Product, len(list))
	for _, p := range list {
		idx[p.ID] = p
	}
	return idx, nil
}

func toLevelDTO(r *entity.StockRecord, p *entity.Product) dto.StockLevelDTO {
	out := dto.StockLevelDTO{
		ProductID:    r.ProductID,
		StoreID:      r.StoreID,
		Quantity:     r.Quantity,
		MinThreshold: r.MinThreshold,
		Level:        string(domaininv.Classify(r.Quantity, r.MinThreshold)),
		UpdatedAt:    r.UpdatedAt,
	}
	if p != nil {
		out.ProductName = p.Name
		out.SKU = p.SKU
	}
	return out
}
