// Package telemetry instrumentos OpenTelemetry del núcleo de ventas.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName nombre del meter y del tracer del núcleo de ventas.
const InstrumentationName = "github.com/jhoicas/pos-multitienda/sales"

// SaleMetrics contadores de resultados de CreateSale. Un *SaleMetrics nil no registra nada.
type SaleMetrics struct {
	committed      metric.Int64Counter
	rejected       metric.Int64Counter
	exposedPartial metric.Int64Counter
}

// NewSaleMetrics crea los contadores sobre mp; mp nil usa el proveedor global.
func NewSaleMetrics(mp metric.MeterProvider) (*SaleMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)

	committed, err := meter.Int64Counter("pos.sales.committed",
		metric.WithDescription("Ventas confirmadas"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("pos.sales.rejected",
		metric.WithDescription("Intentos de venta rechazados o revertidos sin efectos"))
	if err != nil {
		return nil, err
	}
	exposed, err := meter.Int64Counter("pos.sales.exposed_partial",
		metric.WithDescription("Ventas aplicadas a medias que requieren conciliación (alerta)"))
	if err != nil {
		return nil, err
	}
	return &SaleMetrics{committed: committed, rejected: rejected, exposedPartial: exposed}, nil
}

// Committed cuenta una venta confirmada.
func (m *SaleMetrics) Committed(ctx context.Context, storeID string) {
	if m == nil {
		return
	}
	m.committed.Add(ctx, 1, metric.WithAttributes(attribute.String("store_id", storeID)))
}

// Rejected cuenta un intento sin efectos persistidos.
func (m *SaleMetrics) Rejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// ExposedPartial cuenta una venta expuesta a medias.
func (m *SaleMetrics) ExposedPartial(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.exposedPartial.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}
