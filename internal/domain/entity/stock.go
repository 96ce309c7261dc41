package entity

import "time"

// StockRecord cantidad disponible de un producto en una tienda (clave producto+tienda).
// Invariante: Quantity >= 0 siempre.
type StockRecord struct {
	ProductID        string
	StoreID          string
	Quantity         int
	MinThreshold     int
	ReservedQuantity int
	UpdatedAt        time.Time
}
