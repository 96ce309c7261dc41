package inventory

import "github.com/jhoicas/pos-multitienda/internal/domain/entity"

// StockLevel clasificación de una cantidad en stock frente a su umbral mínimo.
type StockLevel string

const (
	LevelOutOfStock StockLevel = "out_of_stock"
	LevelLow        StockLevel = "low"
	LevelMedium     StockLevel = "medium"
	LevelHigh       StockLevel = "high"
)

// mediumMultiple hasta cuántas veces el umbral se considera stock medio.
const mediumMultiple = 3

// Classify clasifica una cantidad (servicio de dominio, sin I/O).
// 0 → agotado; 0 < q <= umbral → bajo; umbral < q <= 3*umbral → medio; resto → alto.
// Con umbral <= 0 cualquier cantidad positiva es alta.
func Classify(quantity, threshold int) StockLevel {
	switch {
	case quantity <= 0:
		return LevelOutOfStock
	case threshold <= 0:
		return LevelHigh
	case quantity <= threshold:
		return LevelLow
	case quantity <= threshold*mediumMultiple:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// NeedsReplenishment true para agotado o bajo.
func (l StockLevel) NeedsReplenishment() bool {
	return l == LevelOutOfStock || l == LevelLow
}

// Aggregate suma la cantidad de productID en las tiendas indicadas.
// Las tiendas sin registro aportan 0.
func Aggregate(records []*entity.StockRecord, productID string, storeIDs []string) int {
	wanted := make(map[string]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		wanted[id] = struct{}{}
	}
	total := 0
	for _, r := range records {
		if r == nil || r.ProductID != productID {
			continue
		}
		if _, ok := wanted[r.StoreID]; ok {
			total += r.Quantity
		}
	}
	return total
}
