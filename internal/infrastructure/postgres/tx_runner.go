package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/pos-multitienda/internal/application/sales"
	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

var _ sales.SaleTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunSale inicia una transacción READ COMMITTED, ejecuta fn con repos de venta, stock y
// movimientos atados a la tx y hace Commit o Rollback. Un fallo del Commit se reporta como sales.ErrCommitUncertain:
// el servidor pudo haber confirmado antes de perder la conexión.
func (r *TxRunner) RunSale(ctx context.Context, fn func(
	saleRepo repository.SaleRepository,
	stockRepo repository.StockRepository,
	movRepo repository.InventoryMovementRepository,
) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(NewSaleRepository(tx), NewStockRepository(tx), NewInventoryMovementRepository(tx)); err != nil {
		return err
	}
	// Con el contexto vencido el COMMIT no se envía: el resultado es un rollback seguro.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", sales.ErrCommitUncertain, err)
	}
	return nil
}
