package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/sale"
)

// SaleItemRequest línea del carrito.
type SaleItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateSaleRequest body para POST /api/sales. Las reglas de negocio las aplica el constructor de ventas.
type CreateSaleRequest struct {
	StoreID        string            `json:"store_id"`
	Items          []SaleItemRequest `json:"items"`
	Discount       decimal.Decimal   `json:"discount"`
	PaymentMethod  string            `json:"payment_method"`
	CustomerName   string            `json:"customer_name" validate:"max=200"`
	CustomerEmail  string            `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone  string            `json:"customer_phone" validate:"max=50"`
	Notes          string            `json:"notes" validate:"max=1000"`
	IdempotencyKey string            `json:"idempotency_key" validate:"max=100"`
}

// ToDomain convierte el body a la entrada del constructor de ventas.
func (r CreateSaleRequest) ToDomain() sale.Request {
	items := make([]sale.ItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, sale.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return sale.Request{
		StoreID:        r.StoreID,
		Items:          items,
		Discount:       r.Discount,
		PaymentMethod:  r.PaymentMethod,
		CustomerName:   r.CustomerName,
		CustomerEmail:  r.CustomerEmail,
		CustomerPhone:  r.CustomerPhone,
		Notes:          r.Notes,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// SaleItemResponse salida de una línea.
type SaleItemResponse struct {
	ID                  string          `json:"id"`
	ProductID           string          `json:"product_id"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	BackorderedQuantity int             `json:"backordered_quantity,omitempty"`
}

// SaleResponse salida de una venta.
type SaleResponse struct {
	ID             string             `json:"id"`
	SaleNumber     string             `json:"sale_number"`
	StoreID        string             `json:"store_id"`
	SellerID       string             `json:"seller_id"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	Total          decimal.Decimal    `json:"total"`
	Status         string             `json:"status"`
	PaymentMethod  string             `json:"payment_method"`
	CustomerName   string             `json:"customer_name,omitempty"`
	CustomerEmail  string             `json:"customer_email,omitempty"`
	CustomerPhone  string             `json:"customer_phone,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Items          []SaleItemResponse `json:"items,omitempty"`
}

// SaleListResponse lista paginada de ventas.
type SaleListResponse struct {
	Items []SaleResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

// ToSaleResponse mapea la entidad a la salida HTTP.
func ToSaleResponse(s *entity.Sale) SaleResponse {
	out := SaleResponse{
		ID:             s.ID,
		SaleNumber:     s.SaleNumber,
		StoreID:        s.StoreID,
		SellerID:       s.SellerID,
		Subtotal:       s.Subtotal,
		TaxAmount:      s.TaxAmount,
		DiscountAmount: s.DiscountAmount,
		Total:          s.Total,
		Status:         s.Status,
		PaymentMethod:  s.PaymentMethod,
		CustomerName:   s.CustomerName,
		CustomerEmail:  s.CustomerEmail,
		CustomerPhone:  s.CustomerPhone,
		Notes:          s.Notes,
		CreatedAt:      s.CreatedAt,
	}
	for _, it := range s.Items {
		out.Items = append(out.Items, SaleItemResponse{
			ID:                  it.ID,
			ProductID:           it.ProductID,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			TotalPrice:          it.TotalPrice,
			BackorderedQuantity: it.BackorderedQuantity,
		})
	}
	return out
}
