package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-multitienda/internal/application/dto"
	"github.com/jhoicas/pos-multitienda/internal/application/sales"
)

// SaleHandler maneja las peticiones HTTP de ventas (protegido).
type SaleHandler struct {
	create   *sales.CreateSaleUseCase
	query    *sales.SaleQueryUseCase
	validate *validator.Validate
	log      zerolog.Logger
}

// NewSaleHandler construye el handler.
func NewSaleHandler(create *sales.CreateSaleUseCase, query *sales.SaleQueryUseCase, v *validator.Validate, log zerolog.Logger) *SaleHandler {
	return &SaleHandler{create: create, query: query, validate: v, log: log}
}

// Create godoc
// @Summary      Registrar venta
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                 false  "Clave de idempotencia (alternativa al campo del body)"
// @Param        body             body    dto.CreateSaleRequest  true   "Carrito"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SaleHandler) Create(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.CreateSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = c.Get("Idempotency-Key")
	}
	if err := h.validate.Struct(in); err != nil {
		return badRequest(c, "VALIDATION", validationDetail(err))
	}
	s, err := h.create.CreateSale(c.UserContext(), actor, in.ToDomain())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToSaleResponse(s))
}

// GetByID godoc
// @Summary      Obtener venta por ID
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.SaleResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "MISSING_ID", "id es requerido")
	}
	s, err := h.query.GetSale(c.UserContext(), actor, id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToSaleResponse(s))
}

// Movements godoc
// @Summary      Movimientos de stock de una venta
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {array}   dto.MovementResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/movements [get]
func (h *SaleHandler) Movements(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.query.Movements(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToMovementResponses(list))
}

// List godoc
// @Summary      Listar ventas de las tiendas visibles
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite"   default(20)
// @Param        offset  query  int  false  "Offset"   default(0)
// @Success      200     {object}  dto.SaleListResponse
// @Router       /api/sales [get]
func (h *SaleHandler) List(c *fiber.Ctx) error {
	actor, ok := GetActor(c)
	if !ok {
		return unauthorized(c)
	}
	page, msg := parsePage(c, h.validate)
	if msg != "" {
		return badRequest(c, "VALIDATION", msg)
	}
	list, total, err := h.query.ListSales(c.UserContext(), actor, page.Limit, page.Offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.SaleListResponse{
		Items: make([]dto.SaleResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	}
	for _, s := range list {
		out.Items = append(out.Items, dto.ToSaleResponse(s))
	}
	return c.JSON(out)
}

// parsePage lee limit/offset del query. msg no vacío indica entrada inválida.
func parsePage(c *fiber.Ctx, v *validator.Validate) (page dto.PageRequest, msg string) {
	if err := c.QueryParser(&page); err != nil {
		return page, "limit y offset deben ser enteros"
	}
	if err := v.Struct(page); err != nil {
		return page, validationDetail(err)
	}
	page.DefaultPage()
	return page, ""
}
