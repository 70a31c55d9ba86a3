package crypto

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"temporal-sa/crypto-provider/algcache"
)

// LocalMaterialsManager implements MaterialsManager with a master key held
// in process. Data keys are wrapped with the same envelope format the
// Cipher uses for payloads, bound to the key context.
type LocalMaterialsManager struct {
	cache     *algcache.Cache
	masterKey []byte
}

// NewLocalMaterialsManager copies masterKey, which must be DataKeySize bytes.
func NewLocalMaterialsManager(cache *algcache.Cache, masterKey []byte) (*LocalMaterialsManager, error) {
	if len(masterKey) != DataKeySize {
		return nil, fmt.Errorf("master key is %d bytes, need %d", len(masterKey), DataKeySize)
	}
	key := make([]byte, DataKeySize)
	copy(key, masterKey)
	return &LocalMaterialsManager{
		cache:     cache,
		masterKey: key,
	}, nil
}

// GetMaterial generates a fresh data key and wraps it under the master key
func (l *LocalMaterialsManager) GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error) {
	dataKey := make([]byte, DataKeySize)
	if _, err := io.ReadFull(rand.Reader, dataKey); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	wrapped, err := seal(l.cache, l.masterKey, dataKey, ContextToBytes(cryptoCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap data key: %w", err)
	}

	return &Material{
		PlaintextKey: dataKey,
		EncryptedKey: wrapped,
	}, nil
}

// DecryptMaterial unwraps material.EncryptedKey. It fails if cryptoCtx
// differs from the context the key was wrapped under.
func (l *LocalMaterialsManager) DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, material *Material) (*Material, error) {
	dataKey, err := open(l.cache, l.masterKey, material.EncryptedKey, ContextToBytes(cryptoCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap data key: %w", err)
	}

	return &Material{
		PlaintextKey: dataKey,
		EncryptedKey: material.EncryptedKey,
	}, nil
}

// Close zeroes the master key.
func (l *LocalMaterialsManager) Close() {
	Zero(l.masterKey)
}
