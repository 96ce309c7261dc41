// Package sale arma y valida una venta candidata (cabecera + líneas + totales)
// antes de cualquier escritura. No hace I/O.
package sale

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

var (
	// DefaultTaxRate impuesto sobre el subtotal (20%).
	DefaultTaxRate = decimal.NewFromFloat(0.20)
	// DefaultMaxDiscountRate descuento máximo como fracción del subtotal (50%).
	DefaultMaxDiscountRate = decimal.NewFromFloat(0.50)

	minUnitPrice = decimal.New(1, -2) // 0.01
	one          = decimal.NewFromInt(1)
)

// Rules reglas de negocio configurables.
type Rules struct {
	TaxRate         decimal.Decimal
	MaxDiscountRate decimal.Decimal
	NumberPrefix    string
}

// DefaultRules 20% de impuesto, 50% de descuento máximo.
func DefaultRules() Rules {
	return Rules{TaxRate: DefaultTaxRate, MaxDiscountRate: DefaultMaxDiscountRate, NumberPrefix: DefaultNumberPrefix}
}

// ItemInput línea solicitada por el cliente.
type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Request venta solicitada.
type Request struct {
	StoreID        string
	Items          []ItemInput
	Discount       decimal.Decimal
	PaymentMethod  string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Notes          string
	IdempotencyKey string
}

// Builder arma ventas candidatas.
type Builder struct {
	rules   Rules
	numbers *NumberGenerator
	now     func() time.Time
}

// NewBuilder construye el builder. Tasas negativas caen al valor por defecto y el
// descuento máximo se limita a [0, 1] para que el total nunca sea negativo.
func NewBuilder(rules Rules) *Builder {
	if rules.TaxRate.IsNegative() {
		rules.TaxRate = DefaultTaxRate
	}
	if rules.MaxDiscountRate.IsNegative() {
		rules.MaxDiscountRate = DefaultMaxDiscountRate
	}
	if rules.MaxDiscountRate.GreaterThan(one) {
		rules.MaxDiscountRate = one
	}
	return &Builder{
		rules:   rules,
		numbers: NewNumberGenerator(rules.NumberPrefix),
		now:     time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Rules reglas efectivas.
func (b *Builder) Rules() Rules { return b.rules }

// Build valida y calcula la venta. Orden de validación, cada paso corta:
//  1. tienda no vacía y operable por el actor → domain.ErrPermissionDenied
//  2. al menos una línea, todas con producto y cantidad > 0 → domain.ErrEmptyOrInvalidCart
//  3. todo precio unitario >= 0.01 → domain.ErrInvalidPrice
//  4. descuento entre 0 y MaxDiscountRate*subtotal → domain.ErrBusinessRuleViolation
//
// Devuelve la venta sin persistir (sin IDs) o un error; nunca ambas.
func (b *Builder) Build(actor scope.ActorScope, req Request) (*entity.Sale, error) {
	storeID := strings.TrimSpace(req.StoreID)
	if storeID == "" || !scope.Resolve(actor).CanActOnStore(storeID) {
		return nil, domain.ErrPermissionDenied
	}

	if len(req.Items) == 0 {
		return nil, &domain.ValidationError{Kind: domain.ErrEmptyOrInvalidCart, Detail: "sin líneas"}
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 {
			return nil, &domain.ValidationError{Kind: domain.ErrEmptyOrInvalidCart, Detail: fmt.Sprintf("línea %d", i+1)}
		}
	}
	for i, it := range req.Items {
		if it.UnitPrice.LessThan(minUnitPrice) {
			return nil, &domain.ValidationError{Kind: domain.ErrInvalidPrice, Detail: fmt.Sprintf("línea %d", i+1)}
		}
	}

	items := make([]*entity.SaleItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, it := range req.Items {
		lineTotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, &entity.SaleItem{
			ProductID:  strings.TrimSpace(it.ProductID),
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: lineTotal,
		})
	}

	discount := req.Discount
	if discount.IsNegative() {
		return nil, &domain.ValidationError{Kind: domain.ErrBusinessRuleViolation, Detail: "descuento negativo"}
	}
	maxDiscount := subtotal.Mul(b.rules.MaxDiscountRate)
	if discount.GreaterThan(maxDiscount) {
		return nil, &domain.ValidationError{
			Kind:   domain.ErrBusinessRuleViolation,
			Detail: fmt.Sprintf("descuento %s supera el máximo %s", discount.StringFixed(2), maxDiscount.StringFixed(2)),
		}
	}

	payment := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if payment == "" {
		payment = entity.PaymentCash
	}
	if !entity.ValidPaymentMethod(payment) {
		return nil, domain.ErrInvalidInput
	}

	tax := subtotal.Mul(b.rules.TaxRate).Round(2)
	total := subtotal.Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	now := b.now()
	return &entity.Sale{
		SaleNumber:     b.numbers.Next(now),
		StoreID:        storeID,
		SellerID:       actor.ActorID,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		Total:          total,
		Status:         entity.SaleStatusCompleted,
		PaymentMethod:  payment,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		CreatedAt:      now,
		Items:          items,
	}, nil
}
