package sales_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jhoicas/pos-multitienda/internal/application/sales"
	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/sale"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/memory"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/telemetry"
)

// ─── Fixture ────────────────────────────────────────────────────────────────

var (
	sellerS1 = scope.NewActorScope("vendedor-1", scope.RoleSeller, "S1")
	adminAll = scope.NewActorScope("admin-1", scope.RoleAdmin)
)

type fixture struct {
	store       *memory.Store
	uc          *sales.CreateSaleUseCase
	reader      *sdkmetric.ManualReader
	invalidator *recordingInvalidator
	logs        *syncBuffer
}

type options struct {
	cfg       sales.Config
	tx        sales.SaleTxRunner
	saleRepo  repository.SaleRepository
	stockRepo repository.StockRepository
}

// syncBuffer destino de logs compartido por goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// last último evento de log decodificado.
func (b *syncBuffer) last(t *testing.T) map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := strings.Split(strings.TrimSpace(b.buf.String()), "\n")
	require.NotEmpty(t, lines[len(lines)-1])
	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &ev))
	return ev
}

func newFixture(t *testing.T, opt func(*memory.Store, *options)) *fixture {
	t.Helper()
	store := memory.New()
	store.PutStore(entity.Store{ID: "S1", Name: "Centro", Active: true})
	store.PutStore(entity.Store{ID: "S2", Name: "Norte", Active: true})
	store.PutProduct(entity.Product{ID: "P1", SKU: "A", Name: "Café", Price: decimal.NewFromInt(1000), Active: true})
	store.PutProduct(entity.Product{ID: "P2", SKU: "B", Name: "Arroz", Price: decimal.NewFromInt(500), Active: true})
	store.PutProduct(entity.Product{ID: "P3", SKU: "C", Name: "Descontinuado", Price: decimal.NewFromInt(100), Active: false})
	store.SetStock("P1", "S1", 10, 2)
	store.SetStock("P2", "S1", 5, 2)

	o := &options{
		cfg:       sales.Config{Consistency: sales.ConsistencyAtomic},
		tx:        store,
		saleRepo:  store.Sales(),
		stockRepo: store.Stock(),
	}
	if opt != nil {
		opt(store, o)
	}

	reader := sdkmetric.NewManualReader()
	metrics, err := telemetry.NewSaleMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	inv := &recordingInvalidator{}
	logs := &syncBuffer{}

	uc := sales.NewCreateSaleUseCase(sales.Deps{
		Builder:        sale.NewBuilder(sale.DefaultRules()),
		TxRunner:       o.tx,
		SaleRepo:       o.saleRepo,
		StockRepo:      o.stockRepo,
		Movements:      store.Movements(),
		Products:       store.Products(),
		Reconciliation: store.Reconciliation(),
		Invalidator:    inv,
		Metrics:        metrics,
		Logger:         zerolog.New(logs),
	}, o.cfg)

	return &fixture{store: store, uc: uc, reader: reader, invalidator: inv, logs: logs}
}

// movements diario de la venta agrupado por tipo y producto.
func (f *fixture) movements(t *testing.T, saleID string) map[string]map[string]int {
	t.Helper()
	list, err := f.store.Movements().ListBySale(context.Background(), saleID)
	require.NoError(t, err)
	out := map[string]map[string]int{}
	for _, m := range list {
		if out[m.Type] == nil {
			out[m.Type] = map[string]int{}
		}
		_, dup := out[m.Type][m.ProductID]
		assert.False(t, dup, "más de un %s para %s/%s", m.Type, m.ProductID, m.StoreID)
		out[m.Type][m.ProductID] += m.Quantity
	}
	return out
}

func (f *fixture) quantity(t *testing.T, productID, storeID string) int {
	t.Helper()
	q, err := f.store.Stock().GetQuantity(context.Background(), productID, storeID)
	require.NoError(t, err)
	return q
}

func (f *fixture) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func (f *fixture) noSales(t *testing.T) {
	t.Helper()
	list, total, err := f.store.Sales().ListByStores(context.Background(), []string{"S1", "S2"}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func cart(lines ...sale.ItemInput) sale.Request {
	return sale.Request{StoreID: "S1", Items: lines}
}

func line(productID string, qty int, price string) sale.ItemInput {
	return sale.ItemInput{ProductID: productID, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func asSaleError(t *testing.T, err error) *domain.SaleError {
	t.Helper()
	var serr *domain.SaleError
	require.ErrorAs(t, err, &serr)
	assert.NotEmpty(t, serr.AttemptID, "todo error lleva id de correlación")
	return serr
}

type recordingInvalidator struct {
	mu   sync.Mutex
	tags []string
	err  error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tags ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tags...)
	return r.err
}

type faultySales struct {
	repository.SaleRepository
	itemsErr  error
	deleteErr error
}

func (f faultySales) CreateItems(ctx context.Context, saleID string, items []*entity.SaleItem) error {
	if f.itemsErr != nil {
		return f.itemsErr
	}
	return f.SaleRepository.CreateItems(ctx, saleID, items)
}

func (f faultySales) Delete(ctx context.Context, saleID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.SaleRepository.Delete(ctx, saleID)
}

type faultyStock struct {
	repository.StockRepository
	incrementErr error
}

func (f faultyStock) Increment(ctx context.Context, productID, storeID string, amount int) (int, error) {
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	return f.StockRepository.Increment(ctx, productID, storeID, amount)
}

// faultyTx envuelve la transacción en memoria para inyectar fallos en los repos o en el commit.
type faultyTx struct {
	store     *memory.Store
	wrapSales func(repository.SaleRepository) repository.SaleRepository
	commitErr error
}

func (f faultyTx) RunSale(ctx context.Context, fn func(
	repository.SaleRepository,
	repository.StockRepository,
	repository.InventoryMovementRepository,
) error) error {
	err := f.store.RunSale(ctx, func(
		saleRepo repository.SaleRepository,
		stockRepo repository.StockRepository,
		movRepo repository.InventoryMovementRepository,
	) error {
		if f.wrapSales != nil {
			saleRepo = f.wrapSales(saleRepo)
		}
		return fn(saleRepo, stockRepo, movRepo)
	})
	if err == nil && f.commitErr != nil {
		return fmt.Errorf("%w: %w", sales.ErrCommitUncertain, f.commitErr)
	}
	return err
}

// ─── Venta confirmada ───────────────────────────────────────────────────────

// Escenario A: 3 unidades a 1000 en S1 con stock 10.
func TestCreateSale_EscenarioA_Confirmada(t *testing.T) {
	f := newFixture(t, nil)

	s, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 3, "1000")))
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.True(t, decimal.NewFromInt(3600).Equal(s.Total))
	assert.Equal(t, 7, f.quantity(t, "P1", "S1"))

	stored, err := f.store.Sales().GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, s.ID, stored.Items[0].SaleID)
	assert.Equal(t, s.SaleNumber, stored.SaleNumber)

	assert.Equal(t, map[string]map[string]int{entity.MovementTypeOUT: {"P1": 3}}, f.movements(t, s.ID))

	assert.ElementsMatch(t, []string{sales.TagSales, sales.TagStock}, f.invalidator.tags)
	assert.EqualValues(t, 1, f.counter(t, "pos.sales.committed"))
	assert.Zero(t, f.counter(t, "pos.sales.rejected"))
}

func TestCreateSale_FallaDeInvalidacionNoFallaLaVenta(t *testing.T) {
	f := newFixture(t, nil)
	f.invalidator.err = errors.New("redis caído")

	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 1, "10")))
	require.NoError(t, err)
	assert.Equal(t, 9, f.quantity(t, "P1", "S1"))
}

// ─── Rechazos sin efectos ───────────────────────────────────────────────────

// Escenario C: vendedor de S1 intentando vender en S2.
func TestCreateSale_EscenarioC_PermisoDenegadoSinEfectos(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SetStock("P1", "S2", 10, 0)

	req := cart(line("P1", 1, "10"))
	req.StoreID = "S2"
	_, err := f.uc.CreateSale(context.Background(), sellerS1, req)

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	serr := asSaleError(t, err)
	assert.Equal(t, domain.StepValidate, serr.Step)
	assert.Equal(t, domain.OutcomeRejected, serr.Outcome)
	assert.Empty(t, serr.SaleID)

	f.noSales(t)
	assert.Equal(t, 10, f.quantity(t, "P1", "S2"))
	assert.Empty(t, f.invalidator.tags)
	assert.EqualValues(t, 1, f.counter(t, "pos.sales.rejected"))
}

// Escenario D: carrito vacío.
func TestCreateSale_EscenarioD_CarritoVacio(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart())
	assert.ErrorIs(t, err, domain.ErrEmptyOrInvalidCart)
	assert.True(t, domain.IsValidation(err))
	f.noSales(t)
}

// Escenario B: descuento mayor al 50%.
func TestCreateSale_EscenarioB_DescuentoExcesivo(t *testing.T) {
	f := newFixture(t, nil)
	req := cart(line("P1", 1, "1000"))
	req.Discount = decimal.RequireFromString("500.01")

	_, err := f.uc.CreateSale(context.Background(), adminAll, req)
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)
	f.noSales(t)
	assert.Equal(t, 10, f.quantity(t, "P1", "S1"))
}

func TestCreateSale_StockInsuficienteRevierteTodo(t *testing.T) {
	for _, mode := range []sales.Consistency{sales.ConsistencyAtomic, sales.ConsistencySaga} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, func(_ *memory.Store, o *options) { o.cfg.Consistency = mode })

			// P1 se descuenta primero (orden por producto) y P2 no alcanza.
			_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(
				line("P2", 6, "500"),
				line("P1", 4, "1000"),
			))

			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			serr := asSaleError(t, err)
			assert.Equal(t, domain.StepStock, serr.Step)
			assert.Equal(t, domain.OutcomeRolledBack, serr.Outcome)
			assert.NotErrorIs(t, err, domain.ErrExposedPartial)

			var shortage *domain.StockShortageError
			require.ErrorAs(t, err, &shortage)
			assert.Equal(t, "P2", shortage.ProductID)
			assert.Equal(t, 5, shortage.Available)

			f.noSales(t)
			assert.Equal(t, 10, f.quantity(t, "P1", "S1"))
			assert.Equal(t, 5, f.quantity(t, "P2", "S1"))
			assert.Zero(t, f.counter(t, "pos.sales.exposed_partial"))

			recon, err := f.store.Reconciliation().List(context.Background(), 10)
			require.NoError(t, err)
			assert.Empty(t, recon)

			// En saga el OUT de P1 queda compensado por su IN; en atomic no queda nada.
			movs := f.movements(t, serr.SaleID)
			if mode == sales.ConsistencyAtomic {
				assert.Empty(t, movs)
			} else {
				assert.Equal(t, map[string]map[string]int{
					entity.MovementTypeOUT: {"P1": 4},
					entity.MovementTypeIN:  {"P1": 4},
				}, movs)
			}

			ev := f.logs.last(t)
			assert.Equal(t, "warn", ev["level"])
			assert.Equal(t, "venta rechazada", ev["message"])
			assert.Equal(t, "rolled_back", ev["outcome"])
		})
	}
}

func TestCreateSale_Atomic_RollbackNoReportaPasosComoCompletados(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P2", 6, "500")))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	ev := f.logs.last(t)
	assert.Equal(t, "warn", ev["level"])
	assert.Equal(t, []any{}, ev["steps_completed"])
	assert.Equal(t, []any{"header", "items"}, ev["steps_rolled_back"])
}

// 10 en stock y dos ventas concurrentes de 6: exactamente una gana.
func TestCreateSale_ConcurrenciaUnaSolaGana(t *testing.T) {
	for _, mode := range []sales.Consistency{sales.ConsistencyAtomic, sales.ConsistencySaga} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, func(_ *memory.Store, o *options) { o.cfg.Consistency = mode })

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 6, "1000")))
				}(i)
			}
			wg.Wait()

			won, lost := 0, 0
			for _, err := range errs {
				if err == nil {
					won++
					continue
				}
				assert.ErrorIs(t, err, domain.ErrInsufficientStock)
				lost++
			}
			assert.Equal(t, 1, won)
			assert.Equal(t, 1, lost)
			assert.Equal(t, 4, f.quantity(t, "P1", "S1"))

			_, total, err := f.store.Sales().ListByStores(context.Background(), []string{"S1"}, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, 1, total)
		})
	}
}

// ─── Fallos de persistencia ─────────────────────────────────────────────────

func TestCreateSale_Atomic_FalloEnLineasHaceRollback(t *testing.T) {
	f := newFixture(t, func(store *memory.Store, o *options) {
		o.tx = faultyTx{store: store, wrapSales: func(r repository.SaleRepository) repository.SaleRepository {
			return faultySales{SaleRepository: r, itemsErr: errors.New("conexión perdida")}
		}}
	})

	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 2, "10")))

	assert.ErrorIs(t, err, domain.ErrPersistence)
	serr := asSaleError(t, err)
	assert.Equal(t, domain.StepItems, serr.Step)
	assert.Equal(t, domain.OutcomeRolledBack, serr.Outcome)
	assert.NotEmpty(t, serr.SaleID)

	f.noSales(t)
	assert.Equal(t, 10, f.quantity(t, "P1", "S1"))

	ev := f.logs.last(t)
	assert.Equal(t, "error", ev["level"])
	assert.Equal(t, "venta revertida", ev["message"])
}

func TestCreateSale_Atomic_CommitInciertoQuedaParaConciliacion(t *testing.T) {
	f := newFixture(t, func(store *memory.Store, o *options) {
		o.tx = faultyTx{store: store, commitErr: errors.New("conexión cerrada durante COMMIT")}
	})

	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 2, "10")))

	assert.ErrorIs(t, err, domain.ErrExposedPartial)
	assert.ErrorIs(t, err, sales.ErrCommitUncertain)
	serr := asSaleError(t, err)
	assert.Equal(t, domain.StepCommit, serr.Step)
	assert.Equal(t, domain.OutcomeExposedPartial, serr.Outcome)

	recon, err := f.store.Reconciliation().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recon, 1)
	assert.Equal(t, serr.AttemptID, recon[0].AttemptID)
	assert.Equal(t, serr.SaleID, recon[0].SaleID)
	assert.Equal(t, "commit", recon[0].FailedStep)
	assert.Equal(t, []string{"header", "items", "stock"}, recon[0].StepsCompleted)
	require.Len(t, recon[0].Lines, 1)
	assert.Equal(t, 2, recon[0].Lines[0].Requested)
	assert.Equal(t, 2, recon[0].Lines[0].Applied)

	assert.EqualValues(t, 1, f.counter(t, "pos.sales.exposed_partial"))
	assert.Empty(t, f.invalidator.tags)
}

func TestCreateSale_Saga_CompensaFalloEnLineas(t *testing.T) {
	f := newFixture(t, func(store *memory.Store, o *options) {
		o.cfg.Consistency = sales.ConsistencySaga
		o.tx = nil
		o.saleRepo = faultySales{SaleRepository: store.Sales(), itemsErr: errors.New("timeout")}
	})

	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 2, "10")))

	serr := asSaleError(t, err)
	assert.Equal(t, domain.StepItems, serr.Step)
	assert.Equal(t, domain.OutcomeRolledBack, serr.Outcome)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	f.noSales(t)
	assert.Equal(t, 10, f.quantity(t, "P1", "S1"))
}

func TestCreateSale_Saga_CompensacionFallidaEsAlerta(t *testing.T) {
	f := newFixture(t, func(store *memory.Store, o *options) {
		o.cfg.Consistency = sales.ConsistencySaga
		o.stockRepo = faultyStock{StockRepository: store.Stock(), incrementErr: errors.New("stock no disponible")}
	})

	// P1 se aplica, P2 no alcanza, y la restauración de P1 falla.
	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(
		line("P1", 4, "1000"),
		line("P2", 6, "500"),
	))

	assert.ErrorIs(t, err, domain.ErrExposedPartial)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	serr := asSaleError(t, err)
	assert.Equal(t, domain.StepStock, serr.Step)

	recon, err := f.store.Reconciliation().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recon, 1)
	entry := recon[0]
	assert.Equal(t, "vendedor-1", entry.ActorID)
	assert.Equal(t, "S1", entry.StoreID)
	assert.Equal(t, []string{"header", "items"}, entry.StepsCompleted)
	assert.Contains(t, entry.Error, "compensación fallida")
	assert.ElementsMatch(t, []entity.ReconciliationLine{
		{ProductID: "P1", StoreID: "S1", Requested: 4, Applied: 4},
		{ProductID: "P2", StoreID: "S1", Requested: 6, Applied: 0},
	}, entry.Lines)

	// La cabecera sí se pudo eliminar; el stock de P1 quedó descontado.
	f.noSales(t)
	assert.Equal(t, 6, f.quantity(t, "P1", "S1"))
	assert.EqualValues(t, 1, f.counter(t, "pos.sales.exposed_partial"))
}

func TestCreateSale_Saga_ContextoCanceladoIgualCompensa(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, func(store *memory.Store, o *options) {
		o.cfg.Consistency = sales.ConsistencySaga
		o.stockRepo = cancelAfterDecrement{StockRepository: store.Stock(), cancel: cancel}
	})

	_, err := f.uc.CreateSale(ctx, sellerS1, cart(line("P1", 4, "1000"), line("P2", 1, "500")))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrExposedPartial)
	f.noSales(t)
	assert.Equal(t, 10, f.quantity(t, "P1", "S1"))
	assert.Equal(t, 5, f.quantity(t, "P2", "S1"))
}

// cancelAfterDecrement cancela la petición tras el primer descuento y luego respeta el contexto.
type cancelAfterDecrement struct {
	repository.StockRepository
	cancel context.CancelFunc
}

func (c cancelAfterDecrement) Decrement(ctx context.Context, productID, storeID string, amount int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q, err := c.StockRepository.Decrement(ctx, productID, storeID, amount)
	c.cancel()
	return q, err
}

// ─── Idempotencia y backorder ───────────────────────────────────────────────

func TestCreateSale_IdempotenciaDevuelveLaMismaVenta(t *testing.T) {
	f := newFixture(t, nil)
	req := cart(line("P1", 3, "1000"))
	req.IdempotencyKey = "caja-1-000123"

	first, err := f.uc.CreateSale(context.Background(), sellerS1, req)
	require.NoError(t, err)
	second, err := f.uc.CreateSale(context.Background(), sellerS1, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.SaleNumber, second.SaleNumber)
	assert.Equal(t, 7, f.quantity(t, "P1", "S1"), "el reintento no descuenta de nuevo")
	assert.EqualValues(t, 1, f.counter(t, "pos.sales.committed"))
}

func TestCreateSale_BackorderRegistraFaltante(t *testing.T) {
	f := newFixture(t, func(_ *memory.Store, o *options) { o.cfg.StockPolicy = sales.StockPolicyBackorder })

	s, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 12, "1000")))
	require.NoError(t, err)
	require.Len(t, s.Items, 1)
	assert.Equal(t, 2, s.Items[0].BackorderedQuantity)
	assert.Equal(t, 0, f.quantity(t, "P1", "S1"))

	stored, err := f.store.Sales().GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Items[0].BackorderedQuantity)
}

func TestNewCreateSaleUseCase_SinTxRunnerUsaSaga(t *testing.T) {
	uc := sales.NewCreateSaleUseCase(sales.Deps{Logger: zerolog.Nop()}, sales.Config{})

	cfg := uc.Config()
	assert.Equal(t, sales.ConsistencySaga, cfg.Consistency)
	assert.Equal(t, sales.StockPolicyReject, cfg.StockPolicy)
	assert.Positive(t, cfg.CompensationTimeout)
}

// ─── Diario de movimientos y catálogo ───────────────────────────────────────

// Dos líneas del mismo producto: un solo descuento y un solo OUT por (producto, tienda).
func TestCreateSale_UnMovimientoPorProductoTienda(t *testing.T) {
	for _, mode := range []sales.Consistency{sales.ConsistencyAtomic, sales.ConsistencySaga} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, func(_ *memory.Store, o *options) { o.cfg.Consistency = mode })

			s, err := f.uc.CreateSale(context.Background(), sellerS1, cart(
				line("P1", 2, "1000"),
				line("P2", 1, "500"),
				line("P1", 3, "900"),
			))
			require.NoError(t, err)
			require.Len(t, s.Items, 3)

			assert.Equal(t, map[string]map[string]int{
				entity.MovementTypeOUT: {"P1": 5, "P2": 1},
			}, f.movements(t, s.ID))
			assert.Equal(t, 5, f.quantity(t, "P1", "S1"))
			assert.Equal(t, 4, f.quantity(t, "P2", "S1"))
		})
	}
}

func TestCreateSale_BackorderRepartePorLineas(t *testing.T) {
	f := newFixture(t, func(_ *memory.Store, o *options) { o.cfg.StockPolicy = sales.StockPolicyBackorder })

	s, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 6, "1000"), line("P1", 6, "1000")))
	require.NoError(t, err)

	assert.Equal(t, 0, s.Items[0].BackorderedQuantity)
	assert.Equal(t, 2, s.Items[1].BackorderedQuantity)
	assert.Equal(t, 0, f.quantity(t, "P1", "S1"))
	assert.Equal(t, map[string]map[string]int{entity.MovementTypeOUT: {"P1": 10}}, f.movements(t, s.ID))
}

func TestCreateSale_BackorderSinStockNoRegistraMovimiento(t *testing.T) {
	f := newFixture(t, func(_ *memory.Store, o *options) { o.cfg.StockPolicy = sales.StockPolicyBackorder })
	f.store.SetStock("P1", "S1", 0, 2)

	s, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 3, "1000")))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Items[0].BackorderedQuantity)
	assert.Empty(t, f.movements(t, s.ID))
}

func TestCreateSale_ProductoInexistenteOInactivo(t *testing.T) {
	cases := []struct {
		name      string
		productID string
		want      error
	}{
		{name: "inexistente", productID: "P9", want: domain.ErrNotFound},
		{name: "inactivo", productID: "P3", want: domain.ErrBusinessRuleViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.store.SetStock("P3", "S1", 10, 0)

			_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 1, "1000"), line(tc.productID, 1, "100")))

			assert.ErrorIs(t, err, tc.want)
			serr := asSaleError(t, err)
			assert.Equal(t, domain.StepValidate, serr.Step)
			assert.Equal(t, domain.OutcomeRejected, serr.Outcome)
			f.noSales(t)
			assert.Equal(t, 10, f.quantity(t, "P1", "S1"))
			assert.Equal(t, 10, f.quantity(t, "P3", "S1"))
			assert.Equal(t, "warn", f.logs.last(t)["level"])
		})
	}
}

func TestCreateSale_Saga_FalloEnCabeceraEsRechazo(t *testing.T) {
	f := newFixture(t, func(store *memory.Store, o *options) {
		o.cfg.Consistency = sales.ConsistencySaga
		o.tx = nil
		o.saleRepo = failingHeader{SaleRepository: store.Sales()}
	})

	_, err := f.uc.CreateSale(context.Background(), sellerS1, cart(line("P1", 1, "10")))

	serr := asSaleError(t, err)
	assert.Equal(t, domain.StepHeader, serr.Step)
	assert.Equal(t, domain.OutcomeRejected, serr.Outcome)
	assert.Equal(t, 10, f.quantity(t, "P1", "S1"))
}

type failingHeader struct{ repository.SaleRepository }

func (failingHeader) Create(context.Context, *entity.Sale) error { return errors.New("sin conexión") }
