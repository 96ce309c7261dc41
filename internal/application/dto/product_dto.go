package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// VisibleProductDTO producto del catálogo con el stock que el actor puede ver.
// Admin recibe solo TotalStock; manager y seller además el stock por tienda asignada.
type VisibleProductDTO struct {
	ID         string          `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	TotalStock int             `json:"total_stock"`
	StoreStock map[string]int  `json:"store_stock,omitempty"`
}

// StoreResponse salida de una tienda.
type StoreResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
