package algcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"temporal-sa/crypto-provider/config"
	"temporal-sa/crypto-provider/engine"
)

func TestModule(t *testing.T) {
	disabled := false
	cfg := config.DefaultConfig()
	cfg.Engine.ReusableHash = &disabled

	var (
		cache *Cache
		eng   *engine.SoftwareEngine
	)
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(zaptest.NewLogger(t)),
		fx.Provide(func() config.ConfigProvider { return config.NewStaticConfigProvider(cfg) }),
		Module,
		fx.Populate(&cache, &eng),
	)
	defer app.RequireStart().RequireStop()

	assert.Same(t, eng, cache.Engine())
	assert.False(t, eng.SupportsReusableHash())

	for _, alg := range []string{engine.AlgSHA1, engine.AlgSHA256, engine.AlgAES} {
		_, _, err := cache.Get(alg, engine.OpenFlagNone)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, cache.Len())
}
