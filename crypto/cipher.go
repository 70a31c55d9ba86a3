package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/engine"
	"temporal-sa/crypto-provider/metrics"
)

const (
	// DataKeySize is the length of a data key: an AES-256 key followed by
	// an HMAC-SHA256 key.
	DataKeySize = 64

	encKeySize = 32
	ivSize     = 16
	tagSize    = 32
)

// ErrAuthentication is returned when an envelope fails tag verification.
var ErrAuthentication = errors.New("message authentication failed")

// EncryptInput represents the data and contexts for encryption operations
type EncryptInput struct {
	Plaintext []byte
	// KeyContext is bound to the data key by the key source
	KeyContext CryptoContext
	// PayloadContext is authenticated alongside the ciphertext
	PayloadContext CryptoContext
}

// DecryptInput represents the data and contexts for decryption operations
type DecryptInput struct {
	Ciphertext     []byte
	EncryptedKey   []byte
	KeyContext     CryptoContext
	PayloadContext CryptoContext
}

// Cipher seals payloads with AES-256-CBC and HMAC-SHA256 under data keys
// handed out by a MaterialsManager. Envelopes are laid out as
// iv ‖ ciphertext ‖ tag with the tag computed over aad ‖ iv ‖ ciphertext.
type Cipher struct {
	MaterialsManager MaterialsManager

	cache          *algcache.Cache
	metricsHandler client.MetricsHandler
	logger         *zap.Logger
}

// CipherOption configures a Cipher.
type CipherOption func(*Cipher)

func WithCipherMetrics(handler client.MetricsHandler) CipherOption {
	return func(c *Cipher) {
		if handler != nil {
			c.metricsHandler = handler
		}
	}
}

func WithCipherLogger(logger *zap.Logger) CipherOption {
	return func(c *Cipher) {
		c.logger = logger
	}
}

// NewCipher creates a new Cipher with the specified materials manager
func NewCipher(mm MaterialsManager, cache *algcache.Cache, opts ...CipherOption) *Cipher {
	c := &Cipher{
		MaterialsManager: mm,
		cache:            cache,
		metricsHandler:   client.MetricsNopHandler,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt returns the sealed envelope and the wrapped data key it was
// sealed under.
func (c *Cipher) Encrypt(ctx context.Context, input *EncryptInput) ([]byte, []byte, error) {
	start := time.Now()
	c.metricsHandler.Counter(metrics.EncryptRequests).Inc(1)
	defer func() {
		c.metricsHandler.Timer(metrics.EncryptLatency).Record(time.Since(start))
	}()

	material, err := c.MaterialsManager.GetMaterial(ctx, input.KeyContext)
	if err != nil {
		c.metricsHandler.Counter(metrics.EncryptErrors).Inc(1)
		return nil, nil, fmt.Errorf("failed to get encryption material: %w", err)
	}

	envelope, err := seal(c.cache, material.PlaintextKey, input.Plaintext, ContextToBytes(input.PayloadContext))
	if err != nil {
		c.metricsHandler.Counter(metrics.EncryptErrors).Inc(1)
		return nil, nil, err
	}

	c.metricsHandler.Counter(metrics.EncryptSuccess).Inc(1)
	return envelope, material.EncryptedKey, nil
}

// Decrypt unwraps the data key through the materials manager and opens
// the envelope.
func (c *Cipher) Decrypt(ctx context.Context, input *DecryptInput) ([]byte, error) {
	start := time.Now()
	c.metricsHandler.Counter(metrics.DecryptRequests).Inc(1)
	defer func() {
		c.metricsHandler.Timer(metrics.DecryptLatency).Record(time.Since(start))
	}()

	material, err := c.MaterialsManager.DecryptMaterial(ctx, input.KeyContext, &Material{
		EncryptedKey: input.EncryptedKey,
	})
	if err != nil {
		c.metricsHandler.Counter(metrics.DecryptErrors).Inc(1)
		return nil, fmt.Errorf("failed to get decryption material: %w", err)
	}

	plaintext, err := open(c.cache, material.PlaintextKey, input.Ciphertext, ContextToBytes(input.PayloadContext))
	if err != nil {
		c.metricsHandler.Counter(metrics.DecryptErrors).Inc(1)
		c.logger.Debug("failed to open envelope", zap.Error(err))
		return nil, err
	}

	c.metricsHandler.Counter(metrics.DecryptSuccess).Inc(1)
	return plaintext, nil
}

func splitDataKey(key []byte) (encKey, macKey []byte, err error) {
	if len(key) != DataKeySize {
		return nil, nil, fmt.Errorf("data key is %d bytes, need %d", len(key), DataKeySize)
	}
	return key[:encKeySize], key[encKeySize:], nil
}

func seal(cache *algcache.Cache, dataKey, plaintext, aad []byte) ([]byte, error) {
	encKey, macKey, err := splitDataKey(dataKey)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	aes, err := NewAESWithKey(cache, encKey)
	if err != nil {
		return nil, err
	}
	defer aes.Close()

	ct, err := aes.EncryptCBC(plaintext, iv, PaddingPKCS7)
	if err != nil {
		return nil, err
	}

	envelope := make([]byte, 0, ivSize+len(ct)+tagSize)
	envelope = append(envelope, iv...)
	envelope = append(envelope, ct...)

	tag, err := envelopeTag(cache, macKey, aad, envelope)
	if err != nil {
		return nil, err
	}
	return append(envelope, tag...), nil
}

func open(cache *algcache.Cache, dataKey, envelope, aad []byte) ([]byte, error) {
	encKey, macKey, err := splitDataKey(dataKey)
	if err != nil {
		return nil, err
	}
	if len(envelope) < ivSize+tagSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	body, tag := envelope[:len(envelope)-tagSize], envelope[len(envelope)-tagSize:]
	expected, err := envelopeTag(cache, macKey, aad, body)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(tag, expected) != 1 {
		return nil, ErrAuthentication
	}

	aes, err := NewAESWithKey(cache, encKey)
	if err != nil {
		return nil, err
	}
	defer aes.Close()

	return aes.DecryptCBC(body[ivSize:], body[:ivSize], PaddingPKCS7)
}

func envelopeTag(cache *algcache.Cache, macKey, aad, body []byte) ([]byte, error) {
	mac, err := NewHMACProvider(cache, engine.AlgSHA256, macKey)
	if err != nil {
		return nil, err
	}
	defer mac.Close()

	if err := mac.AppendHashData(aad); err != nil {
		return nil, err
	}
	if err := mac.AppendHashData(body); err != nil {
		return nil, err
	}
	tag := make([]byte, mac.HashSizeInBytes())
	if _, err := mac.FinalizeHashAndReset(tag); err != nil {
		return nil, err
	}
	return tag, nil
}
