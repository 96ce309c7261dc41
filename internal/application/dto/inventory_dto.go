package dto

import "time"

// StockLevelDTO stock de un producto en una tienda con su clasificación.
type StockLevelDTO struct {
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	SKU          string    `json:"sku,omitempty"`
	StoreID      string    `json:"store_id"`
	Quantity     int       `json:"quantity"`
	MinThreshold int       `json:"min_threshold"`
	Level        string    `json:"level"` // out_of_stock | low | medium | high
	UpdatedAt    time.Time `json:"updated_at"`
}

// LowStockDTO entrada de la lista de reposición (agotados y bajos).
type LowStockDTO struct {
	StockLevelDTO
	SuggestedOrderQty int `json:"suggested_order_qty"` // hasta 3 veces el umbral
	Priority          int `json:"priority"`            // 1 = más urgente
}

// ProductStockDTO stock de un producto en las tiendas visibles del actor.
type ProductStockDTO struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	TotalStock  int             `json:"total_stock"`
	Stores      []StockLevelDTO `json:"stores"`
}
