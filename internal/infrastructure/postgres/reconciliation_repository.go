package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ repository.ReconciliationRepository = (*ReconciliationRepo)(nil)

// ReconciliationRepo registro de ventas expuestas a medias (tabla sale_reconciliation).
// Usar siempre con el pool: el registro debe sobrevivir al rollback de la venta.
type ReconciliationRepo struct {
	q Querier
}

// NewReconciliationRepository construye el adaptador.
func NewReconciliationRepository(q Querier) *ReconciliationRepo {
	return &ReconciliationRepo{q: q}
}

// Record inserta un registro; las líneas se guardan como JSONB.
func (r *ReconciliationRepo) Record(ctx context.Context, e *entity.ReconciliationEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	lines, err := json.Marshal(e.Lines)
	if err != nil {
		return fmt.Errorf("marshal reconciliation lines: %w", err)
	}
	query := `
		INSERT INTO sale_reconciliation (id, attempt_id, sale_id, sale_number, store_id, actor_id,
			steps_completed, failed_step, lines, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.q.Exec(ctx, query,
		e.ID, e.AttemptID, e.SaleID, e.SaleNumber, e.StoreID, e.ActorID,
		e.StepsCompleted, e.FailedStep, lines, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reconciliation: %w", err)
	}
	return nil
}

// List registros más recientes primero.
func (r *ReconciliationRepo) List(ctx context.Context, limit int) ([]*entity.ReconciliationEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, attempt_id, sale_id, sale_number, store_id, actor_id, steps_completed, failed_step, lines, error, created_at
		FROM sale_reconciliation ORDER BY created_at DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.ReconciliationEntry, 0)
	for rows.Next() {
		var (
			e     entity.ReconciliationEntry
			lines []byte
		)
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.SaleID, &e.SaleNumber, &e.StoreID, &e.ActorID,
			&e.StepsCompleted, &e.FailedStep, &lines, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation: %w", err)
		}
		if err := json.Unmarshal(lines, &e.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal reconciliation lines: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
