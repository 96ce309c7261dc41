package sales_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-multitienda/internal/application/sales"
	"github.com/jhoicas/pos-multitienda/internal/domain"
	"github.com/jhoicas/pos-multitienda/internal/domain/entity"
	"github.com/jhoicas/pos-multitienda/internal/domain/scope"
	"github.com/jhoicas/pos-multitienda/internal/infrastructure/memory"
)

func TestSaleQuery_AlcancePorTienda(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SetStock("P1", "S2", 10, 0)
	ctx := context.Background()

	s1, err := f.uc.CreateSale(ctx, sellerS1, cart(line("P1", 1, "10")))
	require.NoError(t, err)
	req := cart(line("P1", 1, "10"))
	req.StoreID = "S2"
	s2, err := f.uc.CreateSale(ctx, adminAll, req)
	require.NoError(t, err)

	q := sales.NewSaleQueryUseCase(f.store.Sales(), f.store.Stores(), f.store.Movements())

	got, err := q.GetSale(ctx, sellerS1, s1.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = q.GetSale(ctx, sellerS1, s2.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = q.GetSale(ctx, adminAll, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, total, err := q.ListSales(ctx, sellerS1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, s1.ID, list[0].ID)

	_, total, err = q.ListSales(ctx, adminAll, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	list, total, err = q.ListSales(ctx, scope.NewActorScope("nuevo", scope.RoleManager), 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSaleQuery_Movimientos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(_ *memory.Store, o *options) { o.cfg.Consistency = sales.ConsistencySaga })
	q := sales.NewSaleQueryUseCase(f.store.Sales(), f.store.Stores(), f.store.Movements())

	s, err := f.uc.CreateSale(ctx, sellerS1, cart(line("P1", 2, "10")))
	require.NoError(t, err)

	movs, err := q.Movements(ctx, sellerS1, s.ID)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementTypeOUT, movs[0].Type)
	assert.Equal(t, 2, movs[0].Quantity)
	assert.Equal(t, "vendedor-1", movs[0].CreatedBy)

	_, err = q.Movements(ctx, scope.NewActorScope("otro", scope.RoleSeller, "S2"), s.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	// Venta compensada: la cabecera ya no existe, el diario sí.
	_, err = f.uc.CreateSale(ctx, sellerS1, cart(line("P1", 1, "10"), line("P2", 9, "10")))
	serr := asSaleError(t, err)

	_, err = q.Movements(ctx, sellerS1, serr.SaleID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	movs, err = q.Movements(ctx, adminAll, serr.SaleID)
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, entity.MovementTypeOUT, movs[0].Type)
	assert.Equal(t, entity.MovementTypeIN, movs[1].Type)

	_, err = q.Movements(ctx, adminAll, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
