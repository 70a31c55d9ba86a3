package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"temporal-sa/crypto-provider/config"
)

type (
	MetricsProvider interface {
		Start() error
		Stop(ctx context.Context) error
	}

	httpPromMetricsProvider struct {
		host          string
		port          int
		path          string
		registry      *prom.Registry
		meterProvider *metric.MeterProvider
		server        *http.Server
		logger        *zap.Logger
	}
)

func newMetricsProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger) (MetricsProvider, error) {
	metricsConfig := configProvider.GetProviderConfig().Metrics
	provider := &httpPromMetricsProvider{
		host:     metricsConfig.Host,
		port:     metricsConfig.Port,
		path:     DefaultPrometheusPath,
		registry: NewRegistry(),
		logger:   logger,
	}

	meterProvider, err := InitPrometheus(provider.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus provider: %w", err)
	}
	provider.meterProvider = meterProvider

	if provider.port > 0 {
		mux := http.NewServeMux()
		mux.Handle(provider.path, promhttp.HandlerFor(provider.registry, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(logger),
		}))
		provider.server = &http.Server{Addr: provider.getHostPort(), Handler: mux}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return provider.Start()
		},
		OnStop: func(ctx context.Context) error {
			return provider.Stop(ctx)
		},
	})

	return provider, nil
}

func (h *httpPromMetricsProvider) Start() error {
	if h.server == nil {
		h.logger.Debug("metrics endpoint disabled")
		return nil
	}

	go func() {
		h.logger.Info("metrics server started", zap.String("endpoint", h.getHostPortPath()))
		if err := h.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return nil
}

func (h *httpPromMetricsProvider) Stop(ctx context.Context) error {
	var errs []error
	if h.server != nil {
		errs = append(errs, h.server.Shutdown(ctx))
	}
	// flushes instruments recorded by short-lived commands
	errs = append(errs, h.meterProvider.Shutdown(ctx))
	return errors.Join(errs...)
}

func (h *httpPromMetricsProvider) getHostPort() string {
	return fmt.Sprintf("%s:%d", h.host, h.port)
}

func (h *httpPromMetricsProvider) getHostPortPath() string {
	return fmt.Sprintf("%s:%d%s", h.host, h.port, h.path)
}

// newRootMetricsHandler depends on MetricsProvider so the global meter
// provider is installed before the handler resolves its meter.
func newRootMetricsHandler(_ MetricsProvider, logger *zap.Logger) *MetricsHandler {
	return NewMetricsHandler(MetricsHandlerOptions{
		OnError: func(err error) {
			logger.Warn("failed to record metric", zap.Error(err))
		},
	})
}
