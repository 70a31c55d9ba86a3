package crypto

import (
	"bytes"
	"context"
	"time"
)

// Material is a data key in plaintext and wrapped form, with the
// bookkeeping the caching manager needs
type Material struct {
	// PlaintextKey is DataKeySize bytes: cipher key then MAC key
	PlaintextKey []byte
	EncryptedKey []byte
	CreatedAt    time.Time
	UsageCount   int
}

// MaterialsManager hands out data keys and unwraps them again. It is the
// key source behind Cipher.
type MaterialsManager interface {
	GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error)
	DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, material *Material) (*Material, error)
}

// clone copies m with its own key buffers.
func (m *Material) clone() *Material {
	c := *m
	c.PlaintextKey = bytes.Clone(m.PlaintextKey)
	c.EncryptedKey = bytes.Clone(m.EncryptedKey)
	return &c
}
