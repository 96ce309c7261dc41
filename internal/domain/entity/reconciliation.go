package entity

import "time"

// ReconciliationLine estado de una línea de stock en un intento de venta expuesto.
type ReconciliationLine struct {
	ProductID string `json:"product_id"`
	StoreID   string `json:"store_id"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
}

// ReconciliationEntry registro para que una herramienta externa repare una venta
// que quedó aplicada a medias (cabecera/líneas/stock inconsistentes).
type ReconciliationEntry struct {
	ID             string
	AttemptID      string
	SaleID         string
	SaleNumber     string
	StoreID        string
	ActorID        string
	StepsCompleted []string
	FailedStep     string
	Lines          []ReconciliationLine
	Error          string
	CreatedAt      time.Time
}
