package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider bundles the meter provider the service records into and the
// scrape handler that exposes it.
type Provider struct {
	MeterProvider metric.MeterProvider
	Handler       http.Handler

	shutdown func(context.Context) error
}

// Meter returns the report meter.
func (p *Provider) Meter() metric.Meter {
	return p.MeterProvider.Meter(MeterName)
}

// Shutdown flushes and stops the underlying SDK provider, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// NewPrometheusProvider creates an OTel MeterProvider backed by a Prometheus
// exporter on a private registry, plus the /metrics handler for it. Go runtime
// and process collectors are registered alongside the OTel metrics.
func NewPrometheusProvider() (*Provider, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return &Provider{
		MeterProvider: mp,
		Handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		shutdown:      mp.Shutdown,
	}, nil
}

// NewNoopProvider is used when metrics are disabled. Its handler answers 404.
func NewNoopProvider() *Provider {
	return &Provider{
		MeterProvider: noop.NewMeterProvider(),
		Handler:       http.NotFoundHandler(),
	}
}
