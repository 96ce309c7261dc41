package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo; el stock se maneja por tienda en StockRecord.
type Product struct {
	ID        string
	SKU       string // código único
	Name      string
	Price     decimal.Decimal // precio de venta sugerido
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
