package metrics

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// latencyBoundaries run from a single block transform up to a KMS round trip.
var latencyBoundaries = []float64{
	0.000001, // 1 microsecond
	0.000005,
	0.00001,
	0.00005,
	0.0001,
	0.0005,
	0.001, // 1 millisecond
	0.005,
	0.01,
	0.05,
	0.1,
	0.25,
	0.5,
	1.0,
	2.5,
}

// NewRegistry returns a registry with the Go runtime and process collectors
// registered next to whatever InitPrometheus adds.
func NewRegistry() *prom.Registry {
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// InitPrometheus installs a global meter provider exporting to registerer.
func InitPrometheus(registerer prom.Registerer) (*metric.MeterProvider, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(registerer))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}

	histogramView := metric.NewView(
		metric.Instrument{Kind: metric.InstrumentKindHistogram},
		metric.Stream{
			Aggregation: metric.AggregationExplicitBucketHistogram{
				Boundaries: latencyBoundaries,
			},
		},
	)

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithView(histogramView),
	)
	otel.SetMeterProvider(provider)

	return provider, nil
}
