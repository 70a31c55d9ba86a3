package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/engine"
)

func newTestCache(t testing.TB, opts ...engine.Option) (*algcache.Cache, *engine.SoftwareEngine) {
	t.Helper()
	eng := engine.NewSoftwareEngine(opts...)
	cache := algcache.New(eng)
	return cache, eng
}

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func testDataKey(seed byte) []byte {
	key := make([]byte, DataKeySize)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return key
}
