package sales

import (
	"context"
	"errors"

	"github.com/jhoicas/pos-multitienda/internal/domain/repository"
)

// Etiquetas de cache invalidadas tras confirmar una venta.
const (
	TagSales = "sales"
	TagStock = "stock"
)

// ErrCommitUncertain el commit falló y no se sabe si la transacción quedó aplicada.
// Las implementaciones de TxRunner lo envuelven junto al error del driver.
var ErrCommitUncertain = errors.New("commit de la transacción incierto")

// SaleTxRunner ejecuta fn dentro de una transacción, con repos de venta, stock y diario de movimientos atados a ella.
// Si fn devuelve error hace rollback; si el commit falla devuelve un error que envuelve ErrCommitUncertain.
type SaleTxRunner interface {
	RunSale(ctx context.Context, fn func(
		saleRepo repository.SaleRepository,
		stockRepo repository.StockRepository,
		movRepo repository.InventoryMovementRepository,
	) error) error
}

// Invalidator avisa a las vistas dependientes que sus colecciones están obsoletas (invalidate-by-tag).
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}
