package crypto

import (
	"errors"

	"go.uber.org/zap"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/engine"
)

// hashStrategy decides how the native hash object is brought back to an
// empty state. It is chosen once, when the provider is built.
type hashStrategy interface {
	reusable() bool
	createFlags() engine.CreateHashFlags
}

// reusableStrategy keeps one native object for the provider's lifetime; the
// engine resets it after every FinishHash.
type reusableStrategy struct{}

func (reusableStrategy) reusable() bool                      { return true }
func (reusableStrategy) createFlags() engine.CreateHashFlags { return engine.CreateHashReusable }

// recreateStrategy destroys and recreates the native object after every
// message, for engines without reusable hash objects.
type recreateStrategy struct{}

func (recreateStrategy) reusable() bool                      { return false }
func (recreateStrategy) createFlags() engine.CreateHashFlags { return engine.CreateHashNone }

// HashOption configures a HashProvider.
type HashOption func(*HashProvider)

// WithHashLogger sets the logger used for fallback and disposal events.
func WithHashLogger(logger *zap.Logger) HashOption {
	return func(p *HashProvider) {
		p.logger = logger
	}
}

// HashProvider computes digests and HMACs through a native hash object.
//
// A HashProvider is not safe for concurrent use. Use one per goroutine.
type HashProvider struct {
	engine   engine.Engine
	alg      engine.AlgorithmHandle // borrowed from the cache
	hash     engine.HashHandle
	hasHash  bool
	key      []byte
	strategy hashStrategy
	hashSize int
	running  bool
	closed   bool
	logger   *zap.Logger
}

// NewHashProvider creates a provider for the hash algorithm algID, for
// example engine.AlgSHA256.
func NewHashProvider(cache *algcache.Cache, algID string, opts ...HashOption) (*HashProvider, error) {
	return newHashProvider(cache, algID, nil, false, opts...)
}

// NewHMACProvider creates an HMAC provider keyed with a copy of key.
func NewHMACProvider(cache *algcache.Cache, algID string, key []byte, opts ...HashOption) (*HashProvider, error) {
	return newHashProvider(cache, algID, key, true, opts...)
}

func newHashProvider(cache *algcache.Cache, algID string, key []byte, isHMAC bool, opts ...HashOption) (*HashProvider, error) {
	p := &HashProvider{
		engine: cache.Engine(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	flags := engine.OpenFlagNone
	if isHMAC {
		p.key = make([]byte, len(key))
		copy(p.key, key)
		flags |= engine.OpenFlagHMAC
	}

	alg, hashSize, err := cache.Get(algID, flags)
	if err != nil {
		p.zeroKey()
		return nil, nativeError("open "+algID, err)
	}
	p.alg = alg
	p.hashSize = hashSize

	h, err := p.engine.CreateHash(alg, p.key, engine.CreateHashReusable)
	switch {
	case errors.Is(err, engine.StatusInvalidParameter):
		// The engine predates reusable hash objects; recreate per message.
		p.logger.Debug("reusable hash objects unsupported, recreating per message",
			zap.String("algorithm", algID))
		p.strategy = recreateStrategy{}
		if err := p.Reset(); err != nil {
			p.zeroKey()
			return nil, err
		}
	case err != nil:
		p.zeroKey()
		return nil, nativeError("create hash "+algID, err)
	default:
		p.hash, p.hasHash = h, true
		p.strategy = reusableStrategy{}
	}

	return p, nil
}

// HashSizeInBytes returns the digest length. It never changes.
func (p *HashProvider) HashSizeInBytes() int {
	return p.hashSize
}

// Reusable reports whether the provider keeps a single native object.
func (p *HashProvider) Reusable() bool {
	return p.strategy.reusable()
}

// AppendHashData feeds data into the running digest. After a failure the
// provider state is undefined; Reset or Close it.
func (p *HashProvider) AppendHashData(data []byte) error {
	if err := p.check("append hash data"); err != nil {
		return err
	}
	if err := p.engine.HashData(p.hash, data); err != nil {
		return nativeError("append hash data", err)
	}
	p.running = true
	return nil
}

// Write implements io.Writer on top of AppendHashData.
func (p *HashProvider) Write(data []byte) (int, error) {
	if err := p.AppendHashData(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// FinalizeHashAndReset writes the digest into dst, which must hold at least
// HashSizeInBytes bytes, and leaves the provider ready for a new message.
func (p *HashProvider) FinalizeHashAndReset(dst []byte) (int, error) {
	const op = "finalize hash"
	if err := p.check(op); err != nil {
		return 0, err
	}
	if len(dst) < p.hashSize {
		return 0, configError(op, "destination is %d bytes, need %d", len(dst), p.hashSize)
	}

	if err := p.engine.FinishHash(p.hash, dst[:p.hashSize]); err != nil {
		return 0, nativeError(op, err)
	}
	p.running = false

	if err := p.Reset(); err != nil {
		return 0, err
	}
	return p.hashSize, nil
}

// GetCurrentHash writes the digest of the data appended so far without
// disturbing the running state.
func (p *HashProvider) GetCurrentHash(dst []byte) (int, error) {
	const op = "get current hash"
	if err := p.check(op); err != nil {
		return 0, err
	}
	if len(dst) < p.hashSize {
		return 0, configError(op, "destination is %d bytes, need %d", len(dst), p.hashSize)
	}

	dup, err := p.engine.DuplicateHash(p.hash)
	if err != nil {
		return 0, nativeError(op, err)
	}
	defer p.destroy(dup)

	if err := p.engine.FinishHash(dup, dst[:p.hashSize]); err != nil {
		return 0, nativeError(op, err)
	}
	return p.hashSize, nil
}

// Reset discards any appended data. A reusable provider that is idle has
// nothing to do; otherwise the native object is recreated.
func (p *HashProvider) Reset() error {
	if p.closed {
		return disposedError("reset")
	}
	if p.strategy.reusable() && !p.running && p.hasHash {
		return nil
	}

	p.destroyHash()

	h, err := p.engine.CreateHash(p.alg, p.key, p.strategy.createFlags())
	if err != nil {
		return nativeError("reset", err)
	}
	p.hash, p.hasHash = h, true
	p.running = false
	return nil
}

// Close destroys the native hash object and zeroes the HMAC key. The
// algorithm handle belongs to the cache and is left alone. Close never
// fails and may be called more than once.
func (p *HashProvider) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.destroyHash()
	p.zeroKey()
	return nil
}

func (p *HashProvider) check(op string) error {
	if p.closed {
		return disposedError(op)
	}
	if !p.hasHash {
		return nativeError(op, engine.StatusInvalidHandle)
	}
	return nil
}

func (p *HashProvider) destroyHash() {
	if !p.hasHash {
		return
	}
	h := p.hash
	p.hash, p.hasHash = 0, false
	p.destroy(h)
}

func (p *HashProvider) destroy(h engine.HashHandle) {
	if err := p.engine.DestroyHash(h); err != nil {
		p.logger.Warn("failed to destroy hash object", zap.Error(err))
	}
}

func (p *HashProvider) zeroKey() {
	if p.key == nil {
		return
	}
	key := p.key
	p.key = nil
	Zero(key)
}

// HashData returns the algID digest of data.
func HashData(cache *algcache.Cache, algID string, data []byte) ([]byte, error) {
	p, err := NewHashProvider(cache, algID)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.sum(data)
}

// HMACData returns the algID HMAC of data under key.
func HMACData(cache *algcache.Cache, algID string, key, data []byte) ([]byte, error) {
	p, err := NewHMACProvider(cache, algID, key)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.sum(data)
}

func (p *HashProvider) sum(data []byte) ([]byte, error) {
	if err := p.AppendHashData(data); err != nil {
		return nil, err
	}
	out := make([]byte, p.hashSize)
	if _, err := p.FinalizeHashAndReset(out); err != nil {
		return nil, err
	}
	return out, nil
}
