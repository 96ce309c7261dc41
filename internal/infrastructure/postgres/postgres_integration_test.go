package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jhoicas/pos-multitienda/internal/application/sales"
	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/sale"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/postgres"
)

// newTestPool levanta PostgreSQL en un contenedor y aplica las migraciones embebidas.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("prueba de integración: se omite con -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Connect(ctx, dsn, 10)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(pool, zerolog.Nop()))
	require.NoError(t, postgres.Migrate(pool, zerolog.Nop()), "aplicar dos veces no es error")

	_, err = pool.Exec(ctx, `
		INSERT INTO stores (id, name) VALUES ('S1', 'Centro'), ('S2', 'Norte');
		INSERT INTO products (id, sku, name, price) VALUES ('P1', 'A', 'Café', 1000), ('P2', 'B', 'Arroz', 500);
		INSERT INTO stock_records (product_id, store_id, quantity, min_threshold)
		VALUES ('P1', 'S1', 10, 2), ('P2', 'S1', 5, 2), ('P1', 'S2', 3, 2);`)
	require.NoError(t, err)
	return pool
}

func newUseCase(pool *pgxpool.Pool, cfg sales.Config) *sales.CreateSaleUseCase {
	return sales.NewCreateSaleUseCase(sales.Deps{
		Builder:        sale.NewBuilder(sale.DefaultRules()),
		TxRunner:       postgres.NewTxRunner(pool),
		SaleRepo:       postgres.NewSaleRepository(pool),
		StockRepo:      postgres.NewStockRepository(pool),
		Movements:      postgres.NewInventoryMovementRepository(pool),
		Products:       postgres.NewProductRepository(pool),
		Reconciliation: postgres.NewReconciliationRepository(pool),
		Logger:         zerolog.Nop(),
	}, cfg)
}

func TestIntegration_StockLedger(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	stock := postgres.NewStockRepository(pool)

	qty, err := stock.Decrement(ctx, "P1", "S1", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, qty)

	_, err = stock.Decrement(ctx, "P1", "S1", 7)
	var shortage *domain.StockShortageError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, 6, shortage.Available)

	_, err = stock.Decrement(ctx, "P2", "S2", 1)
	require.ErrorAs(t, err, &shortage)
	assert.Zero(t, shortage.Available, "sin registro")

	applied, qty, err := stock.DecrementUpTo(ctx, "P1", "S2", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	assert.Zero(t, qty)

	applied, _, err = stock.DecrementUpTo(ctx, "P1", "S2", 5)
	require.NoError(t, err)
	assert.Zero(t, applied)

	qty, err = stock.Increment(ctx, "P1", "S2", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	total, err := stock.AggregateQuantity(ctx, "P1", []string{"S1", "S2"})
	require.NoError(t, err)
	assert.Equal(t, 8, total)

	records, err := stock.ListByStores(ctx, []string{"S1"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestIntegration_VentasConcurrentesUnaSolaGana(t *testing.T) {
	pool := newTestPool(t)
	uc := newUseCase(pool, sales.Config{Consistency: sales.ConsistencyAtomic})
	actor := scope.NewActorScope("vendedor", scope.RoleSeller, "S1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.CreateSale(context.Background(), actor, sale.Request{
				StoreID: "S1",
				Items:   []sale.ItemInput{{ProductID: "P1", Quantity: 6, UnitPrice: decimal.NewFromInt(1000)}},
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	qty, err := postgres.NewStockRepository(pool).GetQuantity(context.Background(), "P1", "S1")
	require.NoError(t, err)
	assert.Equal(t, 4, qty)

	_, total, err := postgres.NewSaleRepository(pool).ListByStores(context.Background(), []string{"S1"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestIntegration_RollbackYIdempotencia(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	uc := newUseCase(pool, sales.Config{Consistency: sales.ConsistencyAtomic})
	actor := scope.NewActorScope("vendedor", scope.RoleSeller, "S1")

	_, err := uc.CreateSale(ctx, actor, sale.Request{
		StoreID: "S1",
		Items: []sale.ItemInput{
			{ProductID: "P1", Quantity: 2, UnitPrice: decimal.NewFromInt(1000)},
			{ProductID: "P2", Quantity: 9, UnitPrice: decimal.NewFromInt(500)},
		},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	stock := postgres.NewStockRepository(pool)
	qty, _ := stock.GetQuantity(ctx, "P1", "S1")
	assert.Equal(t, 10, qty, "el descuento de P1 se revirtió")
	var movements int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM inventory_movements`).Scan(&movements))
	assert.Zero(t, movements, "el OUT de P1 se revirtió con la venta")

	req := sale.Request{
		StoreID:        "S1",
		IdempotencyKey: "caja-7-42",
		Discount:       decimal.RequireFromString("100.50"),
		Items:          []sale.ItemInput{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.RequireFromString("1000")}},
	}
	first, err := uc.CreateSale(ctx, actor, req)
	require.NoError(t, err)
	second, err := uc.CreateSale(ctx, actor, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := postgres.NewSaleRepository(pool).GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString("1099.50").Equal(got.Total), got.Total.String())
	require.Len(t, got.Items, 1)

	qty, _ = stock.GetQuantity(ctx, "P1", "S1")
	assert.Equal(t, 9, qty)

	movs, err := postgres.NewInventoryMovementRepository(pool).ListBySale(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, movs, 1, "el reintento idempotente no agrega movimientos")
	assert.Equal(t, entity.MovementTypeOUT, movs[0].Type)
	assert.Equal(t, 1, movs[0].Quantity)
}

func TestIntegration_DiarioUnaSalidaPorProductoTienda(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	uc := newUseCase(pool, sales.Config{Consistency: sales.ConsistencyAtomic})
	actor := scope.NewActorScope("vendedor", scope.RoleSeller, "S1")

	s, err := uc.CreateSale(ctx, actor, sale.Request{
		StoreID: "S1",
		Items: []sale.ItemInput{
			{ProductID: "P2", Quantity: 1, UnitPrice: decimal.NewFromInt(500)},
			{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(1000)},
			{ProductID: "P1", Quantity: 2, UnitPrice: decimal.NewFromInt(900)},
		},
	})
	require.NoError(t, err)

	movs, err := postgres.NewInventoryMovementRepository(pool).ListBySale(ctx, s.ID)
	require.NoError(t, err)
	got := map[string]int{}
	for _, m := range movs {
		assert.Equal(t, entity.MovementTypeOUT, m.Type)
		assert.Equal(t, "S1", m.StoreID)
		assert.Equal(t, "vendedor", m.CreatedBy)
		got[m.ProductID] += m.Quantity
	}
	assert.Len(t, movs, 2)
	assert.Equal(t, map[string]int{"P1": 3, "P2": 1}, got)

	dup := &entity.InventoryMovement{SaleID: s.ID, ProductID: "P1", StoreID: "S1", Type: entity.MovementTypeOUT, Quantity: 1, CreatedAt: time.Now()}
	assert.ErrorIs(t, postgres.NewInventoryMovementRepository(pool).Create(ctx, dup), domain.ErrDuplicate)

	qty, _ := postgres.NewStockRepository(pool).GetQuantity(ctx, "P1", "S1")
	assert.Equal(t, 7, qty)
}

func TestIntegration_Conciliacion(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := postgres.NewReconciliationRepository(pool)

	require.NoError(t, repo.Record(ctx, &entity.ReconciliationEntry{
		AttemptID:      "att-1",
		SaleID:         "sale-1",
		StoreID:        "S1",
		StepsCompleted: []string{"header", "items"},
		FailedStep:     "stock",
		Lines:          []entity.ReconciliationLine{{ProductID: "P1", StoreID: "S1", Requested: 4, Applied: 4}},
		Error:          "compensación fallida",
		CreatedAt:      time.Now(),
	}))

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"header", "items"}, list[0].StepsCompleted)
	assert.Equal(t, 4, list[0].Lines[0].Applied)
}
