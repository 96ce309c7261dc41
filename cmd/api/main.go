package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/jhoicas/pos-multitienda/internal/application/inventory"
	"github.com/jhoicas/pos-multitienda/internal/application/sales"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/sale"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/cache"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/memory"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/postgres"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/telemetry"
	httpRouter "github.com/jhoicas/pos-multitienda/internal/interfaces/http"
	"github.com/jhoicas/pos-multitienda/pkg/config"
	"github.com/jhoicas/pos-multitienda/pkg/logger"
)

// storage repositorios y transacción de venta del backend elegido.
type storage struct {
	txRunner    sales.SaleTxRunner
	saleRepo    repository.SaleRepository
	stockRepo   repository.StockRepository
	storeRepo   repository.StoreRepository
	productRepo repository.ProductRepository
	reconRepo   repository.ReconciliationRepository
	movRepo     repository.InventoryMovementRepository
	health      map[string]httpRouter.Pinger
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Str("consistency", cfg.Sales.Consistency).
		Str("stock_policy", cfg.Sales.StockPolicy).
		Msg("iniciando aplicación")

	ctx := context.Background()

	otelProviders, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Name, log.Component("telemetry"))
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar telemetría")
	}
	saleMetrics, err := telemetry.NewSaleMetrics(otelProviders.MeterProvider())
	if err != nil {
		log.Fatal().Err(err).Msg("métricas de ventas")
	}

	var st storage
	switch cfg.Storage.Driver {
	case "postgres":
		st, err = openPostgres(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
	default:
		log.Warn().Msg("almacenamiento en memoria: datos de ejemplo, se pierden al reiniciar")
		st = openMemory()
	}
	defer st.close()

	// Invalidación de cache: Redis si está configurado, si no no-op.
	var invalidator sales.Invalidator = cache.Noop{}
	if cfg.Redis.Addr != "" {
		redisInv, err := cache.NewRedisInvalidator(cfg.Redis, cache.WithLogger(log.Component("cache")))
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("conexión a Redis")
		}
		defer redisInv.Close()
		invalidator = redisInv
		st.health["redis"] = redisInv
	}

	createSaleUC := sales.NewCreateSaleUseCase(sales.Deps{
		Builder: sale.NewBuilder(sale.Rules{
			TaxRate:         cfg.Sales.TaxRate,
			MaxDiscountRate: cfg.Sales.MaxDiscountRate,
			NumberPrefix:    cfg.Sales.NumberPrefix,
		}),
		TxRunner:       st.txRunner,
		SaleRepo:       st.saleRepo,
		StockRepo:      st.stockRepo,
		Movements:      st.movRepo,
		Products:       st.productRepo,
		Reconciliation: st.reconRepo,
		Invalidator:    invalidator,
		Metrics:        saleMetrics,
		Logger:         log.Component("sales"),
	}, sales.Config{
		Consistency: sales.Consistency(cfg.Sales.Consistency),
		StockPolicy: sales.StockPolicy(cfg.Sales.StockPolicy),
		Timeout:     cfg.Sales.Timeout,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "POS Multitienda API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		CreateSale:     createSaleUC,
		SaleQuery:      sales.NewSaleQueryUseCase(st.saleRepo, st.storeRepo, st.movRepo),
		Reconciliation: sales.NewReconciliationQueryUseCase(st.reconRepo),
		StockQuery:     inventory.NewStockQueryUseCase(st.stockRepo, st.storeRepo, st.productRepo),
		ProductQuery:   inventory.NewProductQueryUseCase(st.productRepo, st.stockRepo, st.storeRepo),
		StoreQuery:     inventory.NewStoreQueryUseCase(st.storeRepo),
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		ServiceName:    cfg.App.Name,
		Health:         st.health,
		Logger:         log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado de telemetría")
	}

	log.Info().Msg("aplicación detenida")
}

func openPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage, error) {
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return storage{}, err
	}
	if cfg.Storage.AutoMigrate {
		if err := postgres.Migrate(pool, log.Component("migrate")); err != nil {
			pool.Close()
			return storage{}, err
		}
	}
	return storage{
		txRunner:    postgres.NewTxRunner(pool),
		saleRepo:    postgres.NewSaleRepository(pool),
		stockRepo:   postgres.NewStockRepository(pool),
		storeRepo:   postgres.NewStoreRepository(pool),
		productRepo: postgres.NewProductRepository(pool),
		reconRepo:   postgres.NewReconciliationRepository(pool),
		movRepo:     postgres.NewInventoryMovementRepository(pool),
		health:      map[string]httpRouter.Pinger{"postgres": pool},
		close:       pool.Close,
	}, nil
}

func openMemory() storage {
	store := memory.NewSeeded()
	return storage{
		txRunner:    store,
		saleRepo:    store.Sales(),
		stockRepo:   store.Stock(),
		storeRepo:   store.Stores(),
		productRepo: store.Products(),
		reconRepo:   store.Reconciliation(),
		movRepo:     store.Movements(),
		health:      map[string]httpRouter.Pinger{},
		close:       func() {},
	}
}
