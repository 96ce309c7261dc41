package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
	"github.com/jhoicas/pos-multitienda/internal/domain/sale"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/telemetry"
)

// Consistency estrategia para aplicar cabecera + líneas + stock como una sola operación.
type Consistency string

const (
	// ConsistencyAtomic una transacción ACID envuelve los tres pasos.
	ConsistencyAtomic Consistency = "atomic"
	// ConsistencySaga pasos independientes con compensación explícita si falla uno.
	ConsistencySaga Consistency = "saga"
)

// StockPolicy qué hacer cuando una línea pide más de lo disponible.
type StockPolicy string

const (
	// StockPolicyReject aborta la venta completa con domain.ErrInsufficientStock.
	StockPolicyReject StockPolicy = "reject"
	// StockPolicyBackorder descuenta lo disponible y registra el faltante en la línea.
	StockPolicyBackorder StockPolicy = "backorder"
)

// Config política de CreateSale.
type Config struct {
	Consistency         Consistency
	StockPolicy         StockPolicy
	Timeout             time.Duration // 0 = sin límite propio
	CompensationTimeout time.Duration
}

// Deps dependencias de CreateSaleUseCase.
type Deps struct {
	Builder        *sale.Builder
	TxRunner       SaleTxRunner // requerido en modo atomic
	SaleRepo       repository.SaleRepository
	StockRepo      repository.StockRepository
	Movements      repository.InventoryMovementRepository // diario en modo saga; en atomic lo entrega el TxRunner
	Products       repository.ProductRepository           // nil = sin verificación de catálogo
	Reconciliation repository.ReconciliationRepository
	Invalidator    Invalidator
	Metrics        *telemetry.SaleMetrics
	Logger         zerolog.Logger
}

// CreateSaleUseCase convierte un carrito en una venta persistida y descuenta el stock por tienda.
// Los únicos resultados son: venta confirmada, o ningún efecto visible. Si una compensación falla
// la venta queda expuesta a medias: se registra para conciliación y se cuenta como alerta.
type CreateSaleUseCase struct {
	builder     *sale.Builder
	txRunner    SaleTxRunner
	saleRepo    repository.SaleRepository
	stockRepo   repository.StockRepository
	movements   repository.InventoryMovementRepository
	products    repository.ProductRepository
	recon       repository.ReconciliationRepository
	invalidator Invalidator
	metrics     *telemetry.SaleMetrics
	tracer      trace.Tracer
	log         zerolog.Logger
	cfg         Config
	newID       func() string
}

// NewCreateSaleUseCase construye el orquestador. Sin TxRunner el modo atomic cae a saga.
func NewCreateSaleUseCase(deps Deps, cfg Config) *CreateSaleUseCase {
	if deps.Builder == nil {
		deps.Builder = sale.NewBuilder(sale.DefaultRules())
	}
	if deps.Invalidator == nil {
		deps.Invalidator = noopInvalidator{}
	}
	if cfg.Consistency != ConsistencySaga {
		cfg.Consistency = ConsistencyAtomic
	}
	if cfg.Consistency == ConsistencyAtomic && deps.TxRunner == nil {
		deps.Logger.Warn().Msg("sin TxRunner: CreateSale usará saga con compensación")
		cfg.Consistency = ConsistencySaga
	}
	if cfg.StockPolicy != StockPolicyBackorder {
		cfg.StockPolicy = StockPolicyReject
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = 5 * time.Second
	}
	return &CreateSaleUseCase{
		builder:     deps.Builder,
		txRunner:    deps.TxRunner,
		saleRepo:    deps.SaleRepo,
		stockRepo:   deps.StockRepo,
		movements:   deps.Movements,
		products:    deps.Products,
		recon:       deps.Reconciliation,
		invalidator: deps.Invalidator,
		metrics:     deps.Metrics,
		tracer:      otel.Tracer(telemetry.InstrumentationName),
		log:         deps.Logger,
		cfg:         cfg,
		newID:       uuid.NewString,
	}
}

// Config política efectiva.
func (uc *CreateSaleUseCase) Config() Config { return uc.cfg }

// CreateSale valida el carrito, persiste cabecera y líneas, descuenta el stock una vez por
// (producto, tienda) y deja un movimiento OUT por cada descuento aplicado.
// Todo error es *domain.SaleError con el id de intento (correlation id) y el paso que falló.
func (uc *CreateSaleUseCase) CreateSale(ctx context.Context, actor scope.ActorScope, req sale.Request) (*entity.Sale, error) {
	at := &attempt{id: uc.newID(), actorID: actor.ActorID, storeID: req.StoreID}

	ctx, span := uc.tracer.Start(ctx, "sales.CreateSale", trace.WithAttributes(
		attribute.String("sale.attempt_id", at.id),
		attribute.String("sale.store_id", req.StoreID),
	))
	defer span.End()

	if uc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.Timeout)
		defer cancel()
	}

	log := uc.log.With().
		Str("attempt_id", at.id).
		Str("store_id", req.StoreID).
		Str("actor_id", actor.ActorID).
		Logger()

	draft, err := uc.builder.Build(actor, req)
	if err != nil {
		return nil, uc.finishFailure(ctx, span, log, at, at.failure(domain.StepValidate, domain.OutcomeRejected, err))
	}
	at.sale = draft

	if draft.IdempotencyKey != "" {
		prev, err := uc.saleRepo.GetByIdempotencyKey(ctx, draft.StoreID, draft.IdempotencyKey)
		if err != nil {
			return nil, uc.finishFailure(ctx, span, log, at, at.failure(domain.StepValidate, domain.OutcomeRejected, err))
		}
		if prev != nil {
			log.Info().Str("sale_id", prev.ID).Str("idempotency_key", draft.IdempotencyKey).
				Msg("venta repetida: se devuelve la existente")
			return prev, nil
		}
	}

	if err := uc.checkProducts(ctx, draft); err != nil {
		return nil, uc.finishFailure(ctx, span, log, at, at.failure(domain.StepValidate, domain.OutcomeRejected, err))
	}

	draft.ID = uc.newID()
	for _, it := range draft.Items {
		it.ID = uc.newID()
		it.SaleID = draft.ID
	}
	at.prepare()
	log = log.With().Str("sale_id", draft.ID).Str("sale_number", draft.SaleNumber).Logger()

	var serr *domain.SaleError
	if uc.cfg.Consistency == ConsistencySaga {
		serr = uc.runSaga(ctx, log, at)
	} else {
		serr = uc.runAtomic(ctx, at)
	}
	if serr != nil {
		if prev := uc.duplicateWinner(ctx, at, serr); prev != nil {
			log.Info().Str("sale_id", prev.ID).Msg("venta concurrente con la misma clave de idempotencia")
			return prev, nil
		}
		return nil, uc.finishFailure(ctx, span, log, at, serr)
	}

	span.SetAttributes(attribute.String("sale.id", draft.ID))
	uc.metrics.Committed(ctx, draft.StoreID)
	log.Info().
		Str("total", draft.Total.StringFixed(2)).
		Int("items", len(draft.Items)).
		Msg("venta confirmada")

	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := uc.invalidator.Invalidate(ictx, TagSales, TagStock); err != nil {
		log.Warn().Err(err).Msg("no se pudo invalidar la cache de ventas/stock")
	}
	return draft, nil
}

// runAtomic cabecera → líneas → stock + diario dentro de una transacción; cualquier fallo hace rollback.
func (uc *CreateSaleUseCase) runAtomic(ctx context.Context, at *attempt) *domain.SaleError {
	failed := domain.StepHeader
	err := uc.txRunner.RunSale(ctx, func(
		saleRepo repository.SaleRepository,
		stockRepo repository.StockRepository,
		movRepo repository.InventoryMovementRepository,
	) error {
		step, err := uc.persist(ctx, saleRepo, stockRepo, movRepo, at)
		if err != nil {
			failed = step
			return err
		}
		failed = domain.StepCommit
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCommitUncertain) {
		return at.failure(domain.StepCommit, domain.OutcomeExposedPartial, err)
	}
	outcome := domain.OutcomeRolledBack
	if len(at.steps) == 0 {
		outcome = domain.OutcomeRejected
	}
	at.rollback()
	return at.failure(failed, outcome, err)
}

// runSaga los mismos pasos sin transacción; si uno falla se compensan los anteriores.
func (uc *CreateSaleUseCase) runSaga(ctx context.Context, log zerolog.Logger, at *attempt) *domain.SaleError {
	step, err := uc.persist(ctx, uc.saleRepo, uc.stockRepo, uc.movements, at)
	if err == nil {
		return nil
	}
	outcome := domain.OutcomeRolledBack
	if len(at.steps) == 0 {
		outcome = domain.OutcomeRejected
	}
	if compErr := uc.compensate(ctx, log, at); compErr != nil {
		return at.failure(step, domain.OutcomeExposedPartial, fmt.Errorf("%w; compensación fallida: %v", err, compErr))
	}
	return at.failure(step, outcome, err)
}

func (uc *CreateSaleUseCase) persist(
	ctx context.Context,
	saleRepo repository.SaleRepository,
	stockRepo repository.StockRepository,
	movRepo repository.InventoryMovementRepository,
	at *attempt,
) (domain.SaleStep, error) {
	if err := saleRepo.Create(ctx, at.sale); err != nil {
		return domain.StepHeader, err
	}
	at.done(domain.StepHeader)

	if err := saleRepo.CreateItems(ctx, at.sale.ID, at.sale.Items); err != nil {
		return domain.StepItems, err
	}
	at.done(domain.StepItems)

	if err := uc.applyStock(ctx, saleRepo, stockRepo, movRepo, at); err != nil {
		return domain.StepStock, err
	}
	at.done(domain.StepStock)
	return "", nil
}

// applyStock descuenta cada (producto, tienda) una sola vez, en orden de producto para que dos
// ventas concurrentes bloqueen filas en el mismo orden, y registra el OUT correspondiente.
func (uc *CreateSaleUseCase) applyStock(
	ctx context.Context,
	saleRepo repository.SaleRepository,
	stockRepo repository.StockRepository,
	movRepo repository.InventoryMovementRepository,
	at *attempt,
) error {
	for i := range at.lines {
		line := &at.lines[i]

		if uc.cfg.StockPolicy == StockPolicyBackorder {
			applied, _, err := stockRepo.DecrementUpTo(ctx, line.ProductID, line.StoreID, line.Requested)
			if err != nil {
				return err
			}
			line.Applied = applied
			if err := at.backorder(ctx, saleRepo, i); err != nil {
				return err
			}
		} else {
			if _, err := stockRepo.Decrement(ctx, line.ProductID, line.StoreID, line.Requested); err != nil {
				return err
			}
			line.Applied = line.Requested
		}

		if line.Applied == 0 || movRepo == nil {
			continue
		}
		if err := movRepo.Create(ctx, at.movement(uc.newID(), i, entity.MovementTypeOUT, at.sale.CreatedAt)); err != nil {
			return fmt.Errorf("registrar salida %s/%s: %w", line.ProductID, line.StoreID, err)
		}
		at.journaled[i] = true
	}
	return nil
}

// compensate restaura el stock descontado por este intento y elimina cabecera y líneas.
// Usa un contexto propio: debe correr aunque la petición original se haya cancelado.
func (uc *CreateSaleUseCase) compensate(ctx context.Context, log zerolog.Logger, at *attempt) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.CompensationTimeout)
	defer cancel()

	var errs []error
	for i := len(at.lines) - 1; i >= 0; i-- {
		line := &at.lines[i]
		if line.Applied == 0 {
			continue
		}
		if _, err := uc.stockRepo.Increment(cctx, line.ProductID, line.StoreID, line.Applied); err != nil {
			errs = append(errs, fmt.Errorf("restaurar stock %s/%s: %w", line.ProductID, line.StoreID, err))
			continue
		}
		if at.journaled[i] && uc.movements != nil {
			if err := uc.movements.Create(cctx, at.movement(uc.newID(), i, entity.MovementTypeIN, time.Now().UTC())); err != nil {
				errs = append(errs, fmt.Errorf("registrar entrada %s/%s: %w", line.ProductID, line.StoreID, err))
			}
		}
		line.Applied = 0
	}
	if err := uc.saleRepo.Delete(cctx, at.sale.ID); err != nil {
		errs = append(errs, fmt.Errorf("eliminar venta: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	at.done(domain.StepCompensate)
	log.Info().Strs("steps_completed", at.stepNames()).Msg("venta compensada")
	return nil
}

// checkProducts cada producto del carrito existe y está activo.
func (uc *CreateSaleUseCase) checkProducts(ctx context.Context, draft *entity.Sale) error {
	if uc.products == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(draft.Items))
	for _, it := range draft.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}

		p, err := uc.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return fmt.Errorf("obtener producto %s: %w", it.ProductID, err)
		}
		if p == nil {
			return fmt.Errorf("%w: producto %s", domain.ErrNotFound, it.ProductID)
		}
		if !p.Active {
			return &domain.ValidationError{Kind: domain.ErrBusinessRuleViolation, Detail: fmt.Sprintf("producto %s inactivo", it.ProductID)}
		}
	}
	return nil
}

// duplicateWinner si otra petición con la misma clave de idempotencia ganó la carrera, la devuelve.
func (uc *CreateSaleUseCase) duplicateWinner(ctx context.Context, at *attempt, serr *domain.SaleError) *entity.Sale {
	if at.sale == nil || at.sale.IdempotencyKey == "" ||
		serr.Outcome == domain.OutcomeExposedPartial || !errors.Is(serr, domain.ErrDuplicate) {
		return nil
	}
	prev, err := uc.saleRepo.GetByIdempotencyKey(context.WithoutCancel(ctx), at.sale.StoreID, at.sale.IdempotencyKey)
	if err != nil {
		return nil
	}
	return prev
}

func (uc *CreateSaleUseCase) finishFailure(
	ctx context.Context,
	span trace.Span,
	log zerolog.Logger,
	at *attempt,
	serr *domain.SaleError,
) error {
	span.RecordError(serr)
	span.SetStatus(codes.Error, string(serr.Outcome))

	if serr.Outcome == domain.OutcomeExposedPartial {
		entry := at.reconciliation(serr, time.Now())
		uc.metrics.ExposedPartial(ctx, string(serr.Step))
		log.Error().
			Err(serr.Err).
			Str("step", string(serr.Step)).
			Strs("steps_completed", entry.StepsCompleted).
			Interface("lines", entry.Lines).
			Msg("venta expuesta parcialmente: requiere conciliación")

		if uc.recon != nil {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.CompensationTimeout)
			defer cancel()
			if err := uc.recon.Record(rctx, entry); err != nil {
				log.Error().Err(err).Str("reconciliation_id", entry.ID).Msg("no se pudo guardar el registro de conciliación")
			}
		}
		return serr
	}

	uc.metrics.Rejected(ctx, rejectReason(serr.Err))
	ev, msg := log.Warn(), "venta rechazada"
	if isInfraFailure(serr.Err) {
		ev = log.Error()
		if serr.Outcome == domain.OutcomeRolledBack {
			msg = "venta revertida"
		}
	}
	ev = ev.Err(serr.Err).
		Str("step", string(serr.Step)).
		Str("outcome", string(serr.Outcome)).
		Strs("steps_completed", at.stepNames())
	if len(at.undone) > 0 {
		ev = ev.Strs("steps_rolled_back", names(at.undone))
	}
	ev.Interface("lines", at.lines).Msg(msg)
	return serr
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case domain.IsValidation(err), errors.Is(err, domain.ErrInvalidInput):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "persistence"
}

// isInfraFailure fallo de almacenamiento, no un rechazo de negocio ni una cancelación del cliente.
func isInfraFailure(err error) bool {
	return errors.Is(err, domain.ErrPersistence) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// attempt estado de un intento de venta: pasos completados y stock aplicado por (producto, tienda).
// lines va ordenado por producto; items[i] son los índices de las líneas de venta de lines[i].
type attempt struct {
	id        string
	actorID   string
	storeID   string
	sale      *entity.Sale
	steps     []domain.SaleStep
	undone    []domain.SaleStep
	lines     []entity.ReconciliationLine
	items     [][]int
	journaled []bool
}

func (a *attempt) prepare() {
	byProduct := make(map[string][]int, len(a.sale.Items))
	for idx, it := range a.sale.Items {
		byProduct[it.ProductID] = append(byProduct[it.ProductID], idx)
	}
	ids := make([]string, 0, len(byProduct))
	for id := range byProduct {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	a.lines = make([]entity.ReconciliationLine, 0, len(ids))
	a.items = make([][]int, 0, len(ids))
	for _, id := range ids {
		line := entity.ReconciliationLine{ProductID: id, StoreID: a.sale.StoreID}
		for _, idx := range byProduct[id] {
			line.Requested += a.sale.Items[idx].Quantity
		}
		a.lines = append(a.lines, line)
		a.items = append(a.items, byProduct[id])
	}
	a.journaled = make([]bool, len(ids))
}

// backorder reparte lo aplicado de lines[i] entre sus líneas de venta en orden y registra el faltante.
func (a *attempt) backorder(ctx context.Context, saleRepo repository.SaleRepository, i int) error {
	remaining := a.lines[i].Applied
	for _, idx := range a.items[i] {
		item := a.sale.Items[idx]
		alloc := min(item.Quantity, remaining)
		remaining -= alloc
		short := item.Quantity - alloc
		if short == 0 {
			continue
		}
		item.BackorderedQuantity = short
		if err := saleRepo.SetBackordered(ctx, item.ID, short); err != nil {
			return err
		}
	}
	return nil
}

func (a *attempt) movement(id string, i int, kind string, when time.Time) *entity.InventoryMovement {
	line := a.lines[i]
	return &entity.InventoryMovement{
		ID:        id,
		SaleID:    a.sale.ID,
		ProductID: line.ProductID,
		StoreID:   line.StoreID,
		Type:      kind,
		Quantity:  line.Applied,
		CreatedAt: when,
		CreatedBy: a.actorID,
	}
}

func (a *attempt) done(s domain.SaleStep) { a.steps = append(a.steps, s) }

// rollback la transacción deshizo todo lo aplicado: los pasos pasan a undone.
func (a *attempt) rollback() {
	for i := range a.lines {
		a.lines[i].Applied = 0
	}
	for i := range a.journaled {
		a.journaled[i] = false
	}
	a.undone = append(a.undone, a.steps...)
	a.steps = nil
}

func (a *attempt) stepNames() []string { return names(a.steps) }

func names(steps []domain.SaleStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = string(s)
	}
	return out
}

func (a *attempt) failure(step domain.SaleStep, outcome domain.SaleOutcome, err error) *domain.SaleError {
	serr := &domain.SaleError{AttemptID: a.id, Step: step, Outcome: outcome, Err: persistenceCause(err)}
	if a.sale != nil {
		serr.SaleID = a.sale.ID
	}
	return serr
}

func (a *attempt) reconciliation(serr *domain.SaleError, now time.Time) *entity.ReconciliationEntry {
	entry := &entity.ReconciliationEntry{
		ID:             uuid.NewString(),
		AttemptID:      a.id,
		SaleID:         serr.SaleID,
		StoreID:        a.storeID,
		ActorID:        a.actorID,
		StepsCompleted: a.stepNames(),
		FailedStep:     string(serr.Step),
		Lines:          append([]entity.ReconciliationLine(nil), a.lines...),
		Error:          serr.Err.Error(),
		CreatedAt:      now,
	}
	if a.sale != nil {
		entry.SaleNumber = a.sale.SaleNumber
	}
	return entry
}

// persistenceCause marca como domain.ErrPersistence los errores que no son de dominio.
func persistenceCause(err error) error {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied),
		domain.IsValidation(err),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPersistence):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, ...string) error { return nil }
