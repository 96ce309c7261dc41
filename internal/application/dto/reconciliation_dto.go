package dto

import (
	"time"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
)

// ReconciliationResponse venta expuesta a medias pendiente de reparación.
type ReconciliationResponse struct {
	ID             string                      `json:"id"`
	AttemptID      string                      `json:"attempt_id"`
	SaleID         string                      `json:"sale_id,omitempty"`
	SaleNumber     string                      `json:"sale_number,omitempty"`
	StoreID        string                      `json:"store_id"`
	ActorID        string                      `json:"actor_id"`
	StepsCompleted []string                    `json:"steps_completed"`
	FailedStep     string                      `json:"failed_step"`
	Lines          []entity.ReconciliationLine `json:"lines"`
	Error          string                      `json:"error"`
	CreatedAt      time.Time                   `json:"created_at"`
}

// ToReconciliationResponse mapea la entidad.
func ToReconciliationResponse(e *entity.ReconciliationEntry) ReconciliationResponse {
	return ReconciliationResponse{
		ID:             e.ID,
		AttemptID:      e.AttemptID,
		SaleID:         e.SaleID,
		SaleNumber:     e.SaleNumber,
		StoreID:        e.StoreID,
		ActorID:        e.ActorID,
		StepsCompleted: e.StepsCompleted,
		FailedStep:     e.FailedStep,
		Lines:          e.Lines,
		Error:          e.Error,
		CreatedAt:      e.CreatedAt,
	}
}

// MovementResponse movimiento de stock causado por una venta.
type MovementResponse struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"sale_id"`
	ProductID string    `json:"product_id"`
	StoreID   string    `json:"store_id"`
	Type      string    `json:"type"` // IN | OUT
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// ToMovementResponses mapea el diario de una venta.
func ToMovementResponses(list []*entity.InventoryMovement) []MovementResponse {
	out := make([]MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, MovementResponse{
			ID:        m.ID,
			SaleID:    m.SaleID,
			ProductID: m.ProductID,
			StoreID:   m.StoreID,
			Type:      m.Type,
			Quantity:  m.Quantity,
			CreatedAt: m.CreatedAt,
			CreatedBy: m.CreatedBy,
		})
	}
	return out
}
