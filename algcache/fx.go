package algcache

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"temporal-sa/crypto-provider/config"
	"temporal-sa/crypto-provider/engine"
)

var Module = fx.Provide(
	newSoftwareEngine,
	newCache,
)

func newSoftwareEngine(configProvider config.ConfigProvider, logger *zap.Logger) *engine.SoftwareEngine {
	var opts []engine.Option
	if !configProvider.GetProviderConfig().Engine.UseReusableHash() {
		opts = append(opts, engine.WithoutReusableHash())
	}
	eng := engine.NewSoftwareEngine(opts...)
	logger.Debug("software engine ready", zap.Bool("reusable_hash", eng.SupportsReusableHash()))
	return eng
}

func newCache(eng *engine.SoftwareEngine) *Cache {
	return New(eng)
}
