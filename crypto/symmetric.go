package crypto

import (
	"crypto/rand"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/engine"
)

type cipherDescriptor struct {
	algorithm      string
	legalKeySizes  []int // bits
	defaultKeySize int
	// expandKey maps a legal key to the form the engine imports.
	expandKey func(key []byte) []byte
}

var (
	aesDescriptor = cipherDescriptor{
		algorithm:      engine.AlgAES,
		legalKeySizes:  []int{128, 192, 256},
		defaultKeySize: 256,
	}
	tripleDESDescriptor = cipherDescriptor{
		algorithm:      engine.AlgTripleDES,
		legalKeySizes:  []int{128, 192},
		defaultKeySize: 192,
		expandKey:      expandTripleDESKey,
	}
)

// expandTripleDESKey turns a two-key K1‖K2 into K1‖K2‖K1.
func expandTripleDESKey(key []byte) []byte {
	out := make([]byte, 0, 24)
	out = append(out, key...)
	if len(key) == 16 {
		out = append(out, key[:8]...)
	}
	return out
}

// SymmetricOption configures a SymmetricAlgorithm.
type SymmetricOption func(*SymmetricAlgorithm)

// WithSymmetricLogger sets the logger used for disposal failures.
func WithSymmetricLogger(logger *zap.Logger) SymmetricOption {
	return func(s *SymmetricAlgorithm) {
		s.logger = logger
	}
}

// SymmetricAlgorithm is a block cipher with its key, IV and default
// chaining settings. Every encryption or decryption builds a fresh engine
// key object that is destroyed before the call returns.
//
// A SymmetricAlgorithm is not safe for concurrent use.
type SymmetricAlgorithm struct {
	desc      cipherDescriptor
	engine    engine.Engine
	alg       engine.AlgorithmHandle // borrowed from the cache
	blockSize int

	key     *KeyMaterial
	keySize int
	iv      []byte

	mode         CipherMode
	padding      PaddingMode
	feedbackSize int

	closed bool
	logger *zap.Logger
}

// NewAES returns AES-256 with a key generated on first use, CBC mode,
// PKCS7 padding and 8-bit feedback.
func NewAES(cache *algcache.Cache, opts ...SymmetricOption) (*SymmetricAlgorithm, error) {
	return newSymmetric(cache, aesDescriptor, opts...)
}

// NewAESWithKey returns AES keyed with a copy of key.
func NewAESWithKey(cache *algcache.Cache, key []byte, opts ...SymmetricOption) (*SymmetricAlgorithm, error) {
	s, err := newSymmetric(cache, aesDescriptor, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.SetKey(key); err != nil {
		return nil, err
	}
	return s, nil
}

// NewAESFromKey returns AES bound to key, which may be opaque. On success
// the algorithm owns key; on error the caller still does.
func NewAESFromKey(cache *algcache.Cache, key *KeyMaterial, opts ...SymmetricOption) (*SymmetricAlgorithm, error) {
	s, err := newSymmetric(cache, aesDescriptor, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.SetKeyMaterial(key); err != nil {
		return nil, err
	}
	return s, nil
}

// NewTripleDES returns three-key TripleDES with a key generated on first use.
func NewTripleDES(cache *algcache.Cache, opts ...SymmetricOption) (*SymmetricAlgorithm, error) {
	return newSymmetric(cache, tripleDESDescriptor, opts...)
}

func newSymmetric(cache *algcache.Cache, desc cipherDescriptor, opts ...SymmetricOption) (*SymmetricAlgorithm, error) {
	alg, blockSize, err := cache.Get(desc.algorithm, engine.OpenFlagNone)
	if err != nil {
		return nil, nativeError("open "+desc.algorithm, err)
	}
	s := &SymmetricAlgorithm{
		desc:         desc,
		engine:       cache.Engine(),
		alg:          alg,
		blockSize:    blockSize,
		keySize:      desc.defaultKeySize,
		mode:         ModeCBC,
		padding:      PaddingPKCS7,
		feedbackSize: 8,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Algorithm returns the engine algorithm name.
func (s *SymmetricAlgorithm) Algorithm() string {
	return s.desc.algorithm
}

// BlockSize returns the cipher block size in bytes.
func (s *SymmetricAlgorithm) BlockSize() int {
	return s.blockSize
}

// LegalKeySizes returns the accepted key sizes in bits.
func (s *SymmetricAlgorithm) LegalKeySizes() []int {
	return slices.Clone(s.desc.legalKeySizes)
}

// KeySize returns the key size in bits.
func (s *SymmetricAlgorithm) KeySize() int {
	return s.keySize
}

// SetKeySize changes the key size and discards the current key; the next
// operation generates a new one.
func (s *SymmetricAlgorithm) SetKeySize(bits int) error {
	if !slices.Contains(s.desc.legalKeySizes, bits) {
		return configError("set key size", "%d bits is not a legal %s key size", bits, s.desc.algorithm)
	}
	s.dropKey()
	s.keySize = bits
	return nil
}

// Key returns a copy of the key, generating one if none is set. Opaque keys
// fail with ErrKeyNotExportable.
func (s *SymmetricAlgorithm) Key() ([]byte, error) {
	key, err := s.keyMaterial()
	if err != nil {
		return nil, err
	}
	return key.Bytes()
}

// SetKey replaces the key with a copy of key. The previous key is zeroed.
func (s *SymmetricAlgorithm) SetKey(key []byte) error {
	if s.closed {
		return disposedError("set key")
	}
	bits := len(key) * 8
	if !slices.Contains(s.desc.legalKeySizes, bits) {
		return configError("set key", "%d bits is not a legal %s key size", bits, s.desc.algorithm)
	}
	s.dropKey()
	s.key = NewPlaintextKey(key)
	s.keySize = bits
	return nil
}

// SetKeyMaterial replaces the key with key. Ownership of key passes to s
// only when SetKeyMaterial succeeds; on error the caller keeps it and the
// current key is unchanged.
func (s *SymmetricAlgorithm) SetKeyMaterial(key *KeyMaterial) error {
	if s.closed {
		return disposedError("set key")
	}
	if key == nil {
		return configError("set key", "key material is nil")
	}
	if !slices.Contains(s.desc.legalKeySizes, key.SizeInBits()) {
		return configError("set key", "%d bits is not a legal %s key size", key.SizeInBits(), s.desc.algorithm)
	}
	s.dropKey()
	s.key = key
	s.keySize = key.SizeInBits()
	return nil
}

// GenerateKey replaces the key with random bytes of KeySize bits.
func (s *SymmetricAlgorithm) GenerateKey() error {
	if s.closed {
		return disposedError("generate key")
	}
	key := make([]byte, s.keySize/8)
	defer Zero(key)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	s.dropKey()
	s.key = NewPlaintextKey(key)
	return nil
}

// IsPlainTextKey reports whether the current key can be exported.
func (s *SymmetricAlgorithm) IsPlainTextKey() bool {
	return s.key == nil || s.key.IsPlainText()
}

// IV returns a copy of the default IV, generating one if none is set.
func (s *SymmetricAlgorithm) IV() ([]byte, error) {
	if s.iv == nil {
		if err := s.GenerateIV(); err != nil {
			return nil, err
		}
	}
	return slices.Clone(s.iv), nil
}

// SetIV sets the IV used by CreateEncryptor and CreateDecryptor.
func (s *SymmetricAlgorithm) SetIV(iv []byte) error {
	if len(iv) != s.blockSize {
		return configError("set iv", "iv is %d bytes, need %d", len(iv), s.blockSize)
	}
	s.iv = slices.Clone(iv)
	return nil
}

// GenerateIV replaces the IV with random bytes.
func (s *SymmetricAlgorithm) GenerateIV() error {
	iv := make([]byte, s.blockSize)
	if _, err := rand.Read(iv); err != nil {
		return fmt.Errorf("failed to generate iv: %w", err)
	}
	s.iv = iv
	return nil
}

func (s *SymmetricAlgorithm) Mode() CipherMode { return s.mode }

func (s *SymmetricAlgorithm) SetMode(mode CipherMode) error {
	if mode < ModeECB || mode > ModeCFB {
		return configError("set mode", "unsupported cipher mode %v", mode)
	}
	s.mode = mode
	return nil
}

func (s *SymmetricAlgorithm) Padding() PaddingMode { return s.padding }

func (s *SymmetricAlgorithm) SetPadding(padding PaddingMode) error {
	if !padding.valid() {
		return configError("set padding", "unsupported padding mode %v", padding)
	}
	s.padding = padding
	return nil
}

// FeedbackSize returns the CFB feedback size in bits.
func (s *SymmetricAlgorithm) FeedbackSize() int { return s.feedbackSize }

// SetFeedbackSize sets the CFB feedback size in bits. Whether the size is
// usable with the current key is checked when a transform is built.
func (s *SymmetricAlgorithm) SetFeedbackSize(bits int) error {
	if bits <= 0 || bits%8 != 0 || bits > s.blockSize*8 {
		return configError("set feedback size", "%d bits is not a legal feedback size", bits)
	}
	s.feedbackSize = bits
	return nil
}

// OutputSize returns the ciphertext length for n bytes of plaintext.
func (s *SymmetricAlgorithm) OutputSize(mode CipherMode, padding PaddingMode, n, feedbackBits int) int {
	unit := s.blockSize
	if mode == ModeCFB && feedbackBits >= 8 {
		unit = feedbackBits / 8
	}
	return padding.paddedLength(n, unit)
}

// CreateEncryptor builds an encrypting Transform from the current mode,
// padding, feedback size and IV. The caller must Close it.
func (s *SymmetricAlgorithm) CreateEncryptor() (*Transform, error) {
	return s.createTransform(true)
}

// CreateDecryptor builds a decrypting Transform. The caller must Close it.
func (s *SymmetricAlgorithm) CreateDecryptor() (*Transform, error) {
	return s.createTransform(false)
}

func (s *SymmetricAlgorithm) createTransform(encrypting bool) (*Transform, error) {
	var iv []byte
	if s.mode != ModeECB {
		var err error
		if iv, err = s.IV(); err != nil {
			return nil, err
		}
	}
	return s.newTransform(transformParams{
		mode:         s.mode,
		padding:      s.padding,
		iv:           iv,
		feedbackBits: s.feedbackSize,
		encrypting:   encrypting,
	})
}

func (s *SymmetricAlgorithm) TryEncryptECB(input, dst []byte, padding PaddingMode) (bool, int, error) {
	return s.oneShot(transformParams{mode: ModeECB, padding: padding, encrypting: true}, input, dst)
}

func (s *SymmetricAlgorithm) TryDecryptECB(input, dst []byte, padding PaddingMode) (bool, int, error) {
	return s.oneShot(transformParams{mode: ModeECB, padding: padding}, input, dst)
}

func (s *SymmetricAlgorithm) TryEncryptCBC(input, iv, dst []byte, padding PaddingMode) (bool, int, error) {
	return s.oneShot(transformParams{mode: ModeCBC, padding: padding, iv: iv, encrypting: true}, input, dst)
}

func (s *SymmetricAlgorithm) TryDecryptCBC(input, iv, dst []byte, padding PaddingMode) (bool, int, error) {
	return s.oneShot(transformParams{mode: ModeCBC, padding: padding, iv: iv}, input, dst)
}

// TryEncryptCFB encrypts with feedbackBits of feedback: 8 for any key, or
// the block size in bits for plaintext keys.
func (s *SymmetricAlgorithm) TryEncryptCFB(input, iv, dst []byte, padding PaddingMode, feedbackBits int) (bool, int, error) {
	return s.oneShot(transformParams{mode: ModeCFB, padding: padding, iv: iv, feedbackBits: feedbackBits, encrypting: true}, input, dst)
}

func (s *SymmetricAlgorithm) TryDecryptCFB(input, iv, dst []byte, padding PaddingMode, feedbackBits int) (bool, int, error) {
	return s.oneShot(transformParams{mode: ModeCFB, padding: padding, iv: iv, feedbackBits: feedbackBits}, input, dst)
}

func (s *SymmetricAlgorithm) EncryptECB(plaintext []byte, padding PaddingMode) ([]byte, error) {
	return s.encrypt(transformParams{mode: ModeECB, padding: padding, encrypting: true}, plaintext)
}

func (s *SymmetricAlgorithm) DecryptECB(ciphertext []byte, padding PaddingMode) ([]byte, error) {
	return s.decrypt(transformParams{mode: ModeECB, padding: padding}, ciphertext)
}

func (s *SymmetricAlgorithm) EncryptCBC(plaintext, iv []byte, padding PaddingMode) ([]byte, error) {
	return s.encrypt(transformParams{mode: ModeCBC, padding: padding, iv: iv, encrypting: true}, plaintext)
}

func (s *SymmetricAlgorithm) DecryptCBC(ciphertext, iv []byte, padding PaddingMode) ([]byte, error) {
	return s.decrypt(transformParams{mode: ModeCBC, padding: padding, iv: iv}, ciphertext)
}

func (s *SymmetricAlgorithm) EncryptCFB(plaintext, iv []byte, padding PaddingMode, feedbackBits int) ([]byte, error) {
	return s.encrypt(transformParams{mode: ModeCFB, padding: padding, iv: iv, feedbackBits: feedbackBits, encrypting: true}, plaintext)
}

func (s *SymmetricAlgorithm) DecryptCFB(ciphertext, iv []byte, padding PaddingMode, feedbackBits int) ([]byte, error) {
	return s.decrypt(transformParams{mode: ModeCFB, padding: padding, iv: iv, feedbackBits: feedbackBits}, ciphertext)
}

func (s *SymmetricAlgorithm) encrypt(p transformParams, plaintext []byte) ([]byte, error) {
	out := make([]byte, s.OutputSize(p.mode, p.padding, len(plaintext), p.feedbackBits))
	ok, n, err := s.oneShot(p, plaintext, out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("encrypt: output buffer of %d bytes too small", len(out))
	}
	return out[:n], nil
}

func (s *SymmetricAlgorithm) decrypt(p transformParams, ciphertext []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	ok, n, err := s.oneShot(p, ciphertext, out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("decrypt: output buffer of %d bytes too small", len(out))
	}
	return out[:n], nil
}

func (s *SymmetricAlgorithm) oneShot(p transformParams, input, dst []byte) (bool, int, error) {
	t, err := s.newTransform(p)
	if err != nil {
		return false, 0, err
	}
	defer t.Close()

	return t.TransformOneShot(input, dst)
}

// newTransform validates p against the current key and imports the key
// into a new engine key object. Nothing reaches the engine until every
// parameter has been checked.
func (s *SymmetricAlgorithm) newTransform(p transformParams) (*Transform, error) {
	const op = "create transform"
	if s.closed {
		return nil, disposedError(op)
	}
	if !p.padding.valid() {
		return nil, configError(op, "unsupported padding mode %v", p.padding)
	}

	switch p.mode {
	case ModeECB:
		p.iv = nil
		p.feedbackBits = 0
	case ModeCBC:
		p.feedbackBits = 0
		if len(p.iv) != s.blockSize {
			return nil, configError(op, "iv is %d bytes, need %d", len(p.iv), s.blockSize)
		}
	case ModeCFB:
		if err := s.checkFeedbackSize(p.feedbackBits); err != nil {
			return nil, err
		}
		if len(p.iv) != s.blockSize {
			return nil, configError(op, "iv is %d bytes, need %d", len(p.iv), s.blockSize)
		}
	default:
		return nil, configError(op, "unsupported cipher mode %v", p.mode)
	}

	key, err := s.keyMaterial()
	if err != nil {
		return nil, err
	}
	handle, err := s.importKey(key)
	if err != nil {
		return nil, err
	}

	p.blockSize = s.blockSize
	return newTransform(s.engine, handle, p, s.logger), nil
}

// checkFeedbackSize enforces the CFB feedback policy: opaque keys only run
// CFB8, plaintext keys run CFB8 or full-block CFB.
func (s *SymmetricAlgorithm) checkFeedbackSize(bits int) error {
	const op = "check feedback size"
	if bits == 8 {
		return nil
	}
	if !s.IsPlainTextKey() {
		return configError(op, "%d-bit feedback is not supported for opaque keys, only 8", bits)
	}
	if bits != s.blockSize*8 {
		return configError(op, "%d-bit feedback is not supported, use 8 or %d", bits, s.blockSize*8)
	}
	return nil
}

func (s *SymmetricAlgorithm) keyMaterial() (*KeyMaterial, error) {
	if s.closed {
		return nil, disposedError("key")
	}
	if s.key == nil {
		if err := s.GenerateKey(); err != nil {
			return nil, err
		}
	}
	return s.key, nil
}

func (s *SymmetricAlgorithm) importKey(key *KeyMaterial) (engine.KeyHandle, error) {
	const op = "import key"
	if !key.IsPlainText() {
		h, err := s.engine.OpenPersistedKey(key.Name())
		if err != nil {
			return 0, nativeError(op, err)
		}
		return h, nil
	}

	raw, err := key.Bytes()
	if err != nil {
		return 0, err
	}
	defer Zero(raw)
	if s.desc.expandKey != nil {
		expanded := s.desc.expandKey(raw)
		defer Zero(expanded)
		raw = expanded
	}

	h, err := s.engine.ImportKey(s.alg, raw)
	if err != nil {
		return 0, nativeError(op, err)
	}
	return h, nil
}

func (s *SymmetricAlgorithm) dropKey() {
	if s.key != nil {
		s.key.Close()
		s.key = nil
	}
}

// Close zeroes the key and IV. The algorithm handle belongs to the cache.
func (s *SymmetricAlgorithm) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dropKey()
	Zero(s.iv)
	s.iv = nil
	return nil
}
