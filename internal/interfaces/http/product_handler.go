package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-multitienda/internal/application/inventory"
)

// ProductHandler catálogo visible según el rol (protegido).
type ProductHandler struct {
	uc  *inventory.ProductQueryUseCase
	log zerolog.Logger
}

// NewProductHandler construye el handler.
func NewProductHandler(uc *inventory.ProductQueryUseCase, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{uc: uc, log: log}
}

// List godoc
// @Summary      Listar productos visibles
// @Description  Admin: todos con stock total. Manager: todos con stock por tienda asignada. Seller: solo con stock en sus tiendas.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.VisibleProductDTO
// @Router       /api/products [get]
func (h *ProductHandler) List(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	out, err := h.uc.VisibleProducts(c.UserContext(), actor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
