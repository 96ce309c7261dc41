package entity

import "time"

// Tipos de movimiento de inventario.
const (
	MovementTypeIN  = "IN"  // entrada (restauración de stock)
	MovementTypeOUT = "OUT" // salida por venta
)

// InventoryMovement movimiento de stock de un producto en una tienda, con referencia a la venta que lo causó.
// Cantidad siempre positiva; el sentido lo da Type.
type InventoryMovement struct {
	ID        string
	SaleID    string
	ProductID string
	StoreID   string
	Type      string
	Quantity  int
	CreatedAt time.Time
	CreatedBy string
}
