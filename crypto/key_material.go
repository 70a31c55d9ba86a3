package crypto

import (
	"fmt"

	"temporal-sa/crypto-provider/engine"
)

// KeyMaterial is either a plaintext key owned by the holder or an opaque
// reference to a key kept inside the engine's protected store.
type KeyMaterial struct {
	plaintext []byte
	name      string
	sizeBits  int
	closed    bool
}

// NewPlaintextKey copies key into a new extractable KeyMaterial.
func NewPlaintextKey(key []byte) *KeyMaterial {
	owned := make([]byte, len(key))
	copy(owned, key)
	return &KeyMaterial{
		plaintext: owned,
		sizeBits:  len(key) * 8,
	}
}

// NewOpaqueKey references a persisted engine key that cannot be exported.
func NewOpaqueKey(name string, sizeBits int) *KeyMaterial {
	return &KeyMaterial{
		name:     name,
		sizeBits: sizeBits,
	}
}

// SealKey moves key into the engine's protected store under name and
// returns an opaque reference to it. key is zeroed on every path.
func SealKey(store engine.KeyStore, name, algorithm string, key []byte) (*KeyMaterial, error) {
	defer Zero(key)

	if err := store.StorePersistedKey(name, algorithm, key); err != nil {
		return nil, fmt.Errorf("failed to seal key %s: %w", name, err)
	}
	return NewOpaqueKey(name, len(key)*8), nil
}

// IsPlainText reports whether the key bytes can be read back.
func (k *KeyMaterial) IsPlainText() bool {
	return k.name == ""
}

// Name returns the persisted key name of an opaque key.
func (k *KeyMaterial) Name() string {
	return k.name
}

// SizeInBits returns the key length in bits.
func (k *KeyMaterial) SizeInBits() int {
	return k.sizeBits
}

// Bytes returns a copy of a plaintext key. Opaque keys fail with
// ErrKeyNotExportable rather than returning an empty key.
func (k *KeyMaterial) Bytes() ([]byte, error) {
	if k.closed {
		return nil, disposedError("key bytes")
	}
	if !k.IsPlainText() {
		return nil, &CryptoError{Op: "key bytes", Kind: ErrKeyNotExportable}
	}
	out := make([]byte, len(k.plaintext))
	copy(out, k.plaintext)
	return out, nil
}

// Close zeroes plaintext key bytes. Opaque keys stay in the engine store,
// which owns them. Close is idempotent.
func (k *KeyMaterial) Close() {
	if k.closed {
		return
	}
	Zero(k.plaintext)
	k.plaintext = nil
	k.closed = true
}
