package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-multitienda/internal/application/dto"
	"github.com/jhoicas/pos-multitienda/internal/application/inventory"
	"github.com/jhoicas/pos-multitienda/internal/application/sales"
)

// StoreHandler tiendas visibles y registro de conciliación (protegido).
type StoreHandler struct {
	stores *inventory.StoreQueryUseCase
	recon  *sales.ReconciliationQueryUseCase
	log    zerolog.Logger
}

// NewStoreHandler construye el handler.
func NewStoreHandler(stores *inventory.StoreQueryUseCase, recon *sales.ReconciliationQueryUseCase, log zerolog.Logger) *StoreHandler {
	return &StoreHandler{stores: stores, recon: recon, log: log}
}

// List godoc
// @Summary      Listar tiendas visibles
// @Tags         stores
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.StoreResponse
// @Router       /api/stores [get]
func (h *StoreHandler) List(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	out, err := h.stores.VisibleStores(c.UserContext(), actor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Reconciliation godoc
// @Summary      Ventas pendientes de conciliación (solo admin)
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Límite"  default(50)
// @Success      200  {array}   dto.ReconciliationResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/reconciliation [get]
func (h *StoreHandler) Reconciliation(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.recon.List(c.UserContext(), actor, c.QueryInt("limit", 50))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.ReconciliationResponse, 0, len(list))
	for _, e := range list {
		out = append(out, dto.ToReconciliationResponse(e))
	}
	return c.JSON(out)
}
