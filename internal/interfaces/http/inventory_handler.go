package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-multitienda/internal/application/inventory"
)

// InventoryHandler consultas de stock por tienda (protegido).
type InventoryHandler struct {
	uc  *inventory.StockQueryUseCase
	log zerolog.Logger
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(uc *inventory.StockQueryUseCase, log zerolog.Logger) *InventoryHandler {
	return &InventoryHandler{uc: uc, log: log}
}

// StockLevels godoc
// @Summary      Stock clasificado de una tienda
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        store_id  query  string  true  "ID de la tienda"
// @Success      200  {array}   dto.StockLevelDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/stock [get]
func (h *InventoryHandler) StockLevels(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	storeID := c.Query("store_id")
	if storeID == "" {
		return badRequest(c, "VALIDATION", "store_id es requerido")
	}
	out, err := h.uc.StockLevels(c.UserContext(), actor, storeID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// LowStock godoc
// @Summary      Productos agotados o bajos en las tiendas visibles
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.LowStockDTO
// @Router       /api/stock/low [get]
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	out, err := h.uc.LowStock(c.UserContext(), actor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// ProductStock godoc
// @Summary      Stock de un producto en las tiendas visibles
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ProductStockDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/products/{id} [get]
func (h *InventoryHandler) ProductStock(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	out, err := h.uc.ProductStock(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
