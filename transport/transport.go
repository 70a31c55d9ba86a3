package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.temporal.io/sdk/converter"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"temporal-sa/crypto-provider/config"
)

type (
	// TransportProvider serves the payload codec over HTTP at the
	// /encode and /decode endpoints Temporal clients use for remote codecs.
	TransportProvider interface {
		Start() error
		Stop(ctx context.Context) error
		Addr() string
	}

	httpCodecTransportProvider struct {
		host   string
		port   int
		server *http.Server
		logger *zap.Logger

		mu       sync.Mutex
		listener net.Listener
	}
)

func newTransportProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger,
	payloadCodec converter.PayloadCodec) TransportProvider {

	serverConfig := configProvider.GetProviderConfig().Server
	transportManager := &httpCodecTransportProvider{
		host:   serverConfig.Host,
		port:   serverConfig.Port,
		logger: logger,
		server: &http.Server{Handler: converter.NewPayloadCodecHTTPHandler(payloadCodec)},
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return transportManager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return transportManager.Stop(ctx)
		},
	})

	return transportManager
}

func (t *httpCodecTransportProvider) Start() error {
	lis, err := net.Listen("tcp", t.getHostPort())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.getHostPort(), err)
	}

	t.mu.Lock()
	t.listener = lis
	t.mu.Unlock()

	t.logger.Info("codec server started", zap.String("addr", lis.Addr().String()))
	go func() {
		if err := t.server.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("codec server error", zap.Error(err))
		}
	}()

	return nil
}

func (t *httpCodecTransportProvider) Stop(ctx context.Context) error {
	return t.server.Shutdown(ctx)
}

// Addr is the bound listener address, or the configured one before Start.
func (t *httpCodecTransportProvider) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.getHostPort()
}

func (t *httpCodecTransportProvider) getHostPort() string {
	return fmt.Sprintf("%s:%d", t.host, t.port)
}
