package metrics

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/opentelemetry"
)

const meterName = "crypto-provider"

type (
	MetricsHandlerOptions struct {
		// Meter defaults to the global meter provider's meter.
		Meter             metric.Meter
		InitialAttributes attribute.Set
		OnError           func(error)
	}

	// MetricsHandler is a client.MetricsHandler backed by OpenTelemetry
	// whose base attributes can grow after construction, for example once
	// the key source has resolved its key id.
	MetricsHandler struct {
		mu         sync.RWMutex
		options    MetricsHandlerOptions
		attributes []attribute.KeyValue
		handler    client.MetricsHandler
	}
)

var _ client.MetricsHandler = (*MetricsHandler)(nil)

func NewMetricsHandler(options MetricsHandlerOptions) *MetricsHandler {
	if options.Meter == nil {
		options.Meter = otel.GetMeterProvider().Meter(meterName)
	}
	h := &MetricsHandler{
		options:    options,
		attributes: options.InitialAttributes.ToSlice(),
	}
	h.rebuild()
	return h
}

// AddAttributes adds attrs to every metric recorded from now on. Later
// values replace earlier ones with the same key.
func (m *MetricsHandler) AddAttributes(attrs ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes = append(m.attributes, attrs...)
	m.rebuild()
}

// rebuild must be called with m.mu held for writing, or before m is shared.
func (m *MetricsHandler) rebuild() {
	m.handler = opentelemetry.NewMetricsHandler(opentelemetry.MetricsHandlerOptions{
		Meter:             m.options.Meter,
		InitialAttributes: attribute.NewSet(m.attributes...),
		OnError:           m.options.OnError,
	})
}

func (m *MetricsHandler) current() client.MetricsHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handler
}

func (m *MetricsHandler) WithTags(tags map[string]string) client.MetricsHandler {
	return m.current().WithTags(tags)
}

func (m *MetricsHandler) Counter(name string) client.MetricsCounter {
	return m.current().Counter(name)
}

func (m *MetricsHandler) Gauge(name string) client.MetricsGauge {
	return m.current().Gauge(name)
}

func (m *MetricsHandler) Timer(name string) client.MetricsTimer {
	return m.current().Timer(name)
}
