package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jhoicas/pos-multitienda/pkg/config"
)

// Providers proveedores de métricas y trazas con su ciclo de vida.
type Providers struct {
	meter  *sdkmetric.MeterProvider
	tracer *sdktrace.TracerProvider
	log    zerolog.Logger
}

// Setup crea los exportadores OTLP gRPC y registra los proveedores globales.
// Deshabilitado devuelve proveedores no-op: los contadores existen pero no exportan.
func Setup(ctx context.Context, cfg config.TelemetryConfig, serviceName string, log zerolog.Logger) (*Providers, error) {
	p := &Providers{log: log}
	if !cfg.Enabled {
		log.Info().Msg("telemetría deshabilitada, proveedores no-op")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("recurso otel: %w", err)
	}

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
	}

	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("exportador de métricas: %w", err)
	}
	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		_ = metricExp.Shutdown(ctx)
		return nil, fmt.Errorf("exportador de trazas: %w", err)
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	p.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(interval))),
	)
	p.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRatio))),
	)
	otel.SetMeterProvider(p.meter)
	otel.SetTracerProvider(p.tracer)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Dur("export_interval", interval).
		Float64("sampling_ratio", cfg.SamplingRatio).
		Msg("telemetría OTLP inicializada")
	return p, nil
}

// MeterProvider proveedor para los instrumentos; no-op si la telemetría está deshabilitada.
func (p *Providers) MeterProvider() metric.MeterProvider {
	if p.meter == nil {
		return noop.NewMeterProvider()
	}
	return p.meter
}

// Enabled true si hay exportación real.
func (p *Providers) Enabled() bool { return p.meter != nil }

// Shutdown vacía y cierra ambos proveedores.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p.meter == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := p.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider: %w", err))
	}
	if err := p.meter.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		p.log.Error().Err(err).Msg("cierre de telemetría")
		return err
	}
	return nil
}
