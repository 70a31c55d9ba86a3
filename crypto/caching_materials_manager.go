package crypto

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.temporal.io/sdk/client"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/engine"
	"temporal-sa/crypto-provider/metrics"
)

const (
	DefaultMaxCache        = 100
	DefaultMaxAge          = 5 * time.Minute
	DefaultMaxMessagesUsed = 1000
)

// CachingConfig holds configuration for caching materials manager. Zero
// fields take the defaults above.
type CachingConfig struct {
	MaxCache        int
	MaxAge          time.Duration
	MaxMessagesUsed int
}

func (c CachingConfig) withDefaults() CachingConfig {
	if c.MaxCache <= 0 {
		c.MaxCache = DefaultMaxCache
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.MaxMessagesUsed <= 0 {
		c.MaxMessagesUsed = DefaultMaxMessagesUsed
	}
	return c
}

// CachingMaterialsManager reuses materials from an underlying manager
// until they reach MaxAge or MaxMessagesUsed
type CachingMaterialsManager struct {
	cache           *lru.Cache
	hashes          *algcache.Cache
	mutex           sync.Mutex
	maxAge          time.Duration
	maxMessagesUsed int
	underlyingMM    MaterialsManager
	metricsHandler  client.MetricsHandler
}

// NewCachingMaterialsManager creates a new caching materials manager.
// Cache keys are SHA-256 digests computed through hashes.
func NewCachingMaterialsManager(
	underlyingMM MaterialsManager,
	hashes *algcache.Cache,
	config CachingConfig,
	metricsHandler client.MetricsHandler,
) (*CachingMaterialsManager, error) {
	config = config.withDefaults()

	if metricsHandler == nil {
		metricsHandler = client.MetricsNopHandler
	}

	// runs for capacity evictions and for expired entries dropped by lookup
	cache, err := lru.NewWithEvict(config.MaxCache, func(key, value interface{}) {
		Zero(value.(*Material).PlaintextKey)
		metricsHandler.Counter(metrics.MaterialsCacheEvictions).Inc(1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return &CachingMaterialsManager{
		cache:           cache,
		hashes:          hashes,
		maxAge:          config.MaxAge,
		maxMessagesUsed: config.MaxMessagesUsed,
		underlyingMM:    underlyingMM,
		metricsHandler:  metricsHandler,
	}, nil
}

// GetMaterial retrieves cryptographic material, either from cache or by creating new ones
func (c *CachingMaterialsManager) GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error) {
	cacheKey, err := c.createCacheKey(cryptoCtx)
	if err != nil {
		return nil, err
	}

	if material, ok := c.lookup(cacheKey); ok {
		return material, nil
	}

	start := time.Now()
	c.metricsHandler.Counter(metrics.MaterialsManagerGetRequests).Inc(1)
	material, err := c.underlyingMM.GetMaterial(ctx, cryptoCtx)
	c.metricsHandler.Timer(metrics.MaterialsManagerGetLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.MaterialsManagerGetErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.MaterialsManagerGetSuccess).Inc(1)

	c.store(cacheKey, material)
	return material, nil
}

// DecryptMaterial returns the cached plaintext for material.EncryptedKey
// under cryptoCtx, or asks the underlying manager to unwrap it.
func (c *CachingMaterialsManager) DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, material *Material) (*Material, error) {
	cacheKey, err := c.createDecryptionCacheKey(cryptoCtx, material.EncryptedKey)
	if err != nil {
		return nil, err
	}

	if cached, ok := c.lookup(cacheKey); ok {
		return cached, nil
	}

	start := time.Now()
	c.metricsHandler.Counter(metrics.MaterialsManagerDecryptRequests).Inc(1)
	decryptedMaterial, err := c.underlyingMM.DecryptMaterial(ctx, cryptoCtx, material)
	c.metricsHandler.Timer(metrics.MaterialsManagerDecryptLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.MaterialsManagerDecryptErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.MaterialsManagerDecryptSuccess).Inc(1)

	c.store(cacheKey, decryptedMaterial)
	return decryptedMaterial, nil
}

// lookup returns a copy of a still-valid cached material and counts the
// use. The cached original is zeroed when it leaves the cache, so callers
// never hold it.
func (c *CachingMaterialsManager) lookup(cacheKey string) (*Material, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cachedValue, found := c.cache.Get(cacheKey)
	if !found {
		c.metricsHandler.Counter(metrics.MaterialsCacheMisses).Inc(1)
		return nil, false
	}

	material := cachedValue.(*Material)
	if !c.isMaterialValid(material) {
		c.cache.Remove(cacheKey)
		c.metricsHandler.Counter(metrics.MaterialsCacheMisses).Inc(1)
		return nil, false
	}

	material.UsageCount++
	c.metricsHandler.Counter(metrics.MaterialsCacheHits).Inc(1)
	return material.clone(), true
}

// store caches a private copy of material. A concurrent miss on the same
// key may have stored first; its copy is zeroed before being replaced since
// Add does not run the eviction callback for existing keys.
func (c *CachingMaterialsManager) store(cacheKey string, material *Material) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	material.CreatedAt = time.Now()
	material.UsageCount = 1
	if previous, ok := c.cache.Peek(cacheKey); ok {
		Zero(previous.(*Material).PlaintextKey)
	}
	c.cache.Add(cacheKey, material.clone())
}

// isMaterialValid checks if the material is still valid based on age and usage count
func (c *CachingMaterialsManager) isMaterialValid(material *Material) bool {
	if time.Since(material.CreatedAt) > c.maxAge {
		return false
	}
	return material.UsageCount < c.maxMessagesUsed
}

// createCacheKey hashes the canonical encoding of the context, the same
// bytes key sources bind as additional authenticated data.
func (c *CachingMaterialsManager) createCacheKey(cryptoCtx CryptoContext) (string, error) {
	h, err := NewHashProvider(c.hashes, engine.AlgSHA256)
	if err != nil {
		return "", fmt.Errorf("failed to create cache key: %w", err)
	}
	defer h.Close()

	if err := h.AppendHashData(ContextToBytes(cryptoCtx)); err != nil {
		return "", err
	}
	return c.digest(h)
}

// createDecryptionCacheKey hashes the context key with the wrapped data
// key, so encryption and decryption entries never collide.
func (c *CachingMaterialsManager) createDecryptionCacheKey(cryptoCtx CryptoContext, encryptedKey []byte) (string, error) {
	contextKey, err := c.createCacheKey(cryptoCtx)
	if err != nil {
		return "", err
	}

	h, err := NewHashProvider(c.hashes, engine.AlgSHA256)
	if err != nil {
		return "", fmt.Errorf("failed to create cache key: %w", err)
	}
	defer h.Close()

	if err := h.AppendHashData([]byte(contextKey + ":")); err != nil {
		return "", err
	}
	if err := h.AppendHashData(encryptedKey); err != nil {
		return "", err
	}
	return c.digest(h)
}

func (c *CachingMaterialsManager) digest(h *HashProvider) (string, error) {
	sum := make([]byte, h.HashSizeInBytes())
	if _, err := h.FinalizeHashAndReset(sum); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}
