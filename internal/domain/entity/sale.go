package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una venta. Solo SaleStatusCompleted se produce hoy; pending/cancelled/refunded
// existen en el modelo pero no tienen transición implementada.
const (
	SaleStatusCompleted = "completed"
	SaleStatusPending   = "pending"
	SaleStatusCancelled = "cancelled"
	SaleStatusRefunded  = "refunded"
)

// Medios de pago aceptados.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentMobile   = "mobile"
)

// ValidPaymentMethod indica si m es un medio de pago conocido.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentMobile:
		return true
	}
	return false
}

// Sale representa la cabecera de una venta (una transacción completa en una tienda).
// Invariante: Total = Subtotal + TaxAmount - DiscountAmount y Total >= 0.
type Sale struct {
	ID             string
	SaleNumber     string // único: prefijo-fecha-hora
	StoreID        string
	SellerID       string
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	Status         string
	PaymentMethod  string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Notes          string
	IdempotencyKey string // opcional; único por tienda
	CreatedAt      time.Time
	Items          []*SaleItem
}
