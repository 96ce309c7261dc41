package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-multitienda/internal/application/inventory"
	"github.com/jhoicas/pos-multitienda/internal/application/sales"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
)

// Pinger dependencia revisada por /health (pool de PostgreSQL, Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CreateSale     *sales.CreateSaleUseCase
	SaleQuery      *sales.SaleQueryUseCase
	Reconciliation *sales.ReconciliationQueryUseCase
	StockQuery     *inventory.StockQueryUseCase
	ProductQuery   *inventory.ProductQueryUseCase
	StoreQuery     *inventory.StoreQueryUseCase
	JWTSecret      string
	JWTIssuer      string
	ServiceName    string
	Health         map[string]Pinger
	Logger         zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", healthHandler(deps.ServiceName, deps.Health))

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	v := newValidator()

	saleHandler := NewSaleHandler(deps.CreateSale, deps.SaleQuery, v, deps.Logger)
	salesGroup := protected.Group("/sales")
	salesGroup.Post("/", saleHandler.Create)
	salesGroup.Get("/", saleHandler.List)
	salesGroup.Get("/:id", saleHandler.GetByID)
	salesGroup.Get("/:id/movements", saleHandler.Movements)

	inventoryHandler := NewInventoryHandler(deps.StockQuery, deps.Logger)
	stock := protected.Group("/stock")
	stock.Get("/", inventoryHandler.StockLevels)
	stock.Get("/low", inventoryHandler.LowStock)
	stock.Get("/products/:id", inventoryHandler.ProductStock)

	productHandler := NewProductHandler(deps.ProductQuery, deps.Logger)
	protected.Get("/products", productHandler.List)

	storeHandler := NewStoreHandler(deps.StoreQuery, deps.Reconciliation, deps.Logger)
	protected.Get("/stores", storeHandler.List)
	protected.Get("/reconciliation", RequireRole(scope.RoleAdmin), storeHandler.Reconciliation)
}

// healthHandler 200 si todas las dependencias responden, 503 si alguna falla.
func healthHandler(service string, checks map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.StatusOK
		deps := make(fiber.Map, len(checks))
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				deps[name] = "down"
				status = fiber.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		state := "ok"
		if status != fiber.StatusOK {
			state = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{"status": state, "service": service, "dependencies": deps})
	}
}
