package entity

import "github.com/shopspring/decimal"

// SaleItem línea de una venta. Invariante: TotalPrice = Quantity * UnitPrice.
type SaleItem struct {
	ID         string
	SaleID     string
	ProductID  string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	// BackorderedQuantity unidades vendidas sin stock (solo con política backorder).
	BackorderedQuantity int
}
