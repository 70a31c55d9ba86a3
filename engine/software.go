package engine

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"
)

type algorithm struct {
	name  string
	flags OpenFlags

	// hash algorithms
	newHash    func() hash.Hash
	digestSize int

	// block ciphers
	newBlock  func(key []byte) (cipher.Block, error)
	blockSize int
}

func (a *algorithm) isHash() bool { return a.newHash != nil }

var hashAlgorithms = map[string]func() hash.Hash{
	AlgMD5:      md5.New,
	AlgSHA1:     sha1.New,
	AlgSHA256:   sha256.New,
	AlgSHA384:   sha512.New384,
	AlgSHA512:   sha512.New,
	AlgSHA3_256: sha3.New256,
	AlgSHA3_384: sha3.New384,
	AlgSHA3_512: sha3.New512,
}

var blockAlgorithms = map[string]struct {
	newBlock  func(key []byte) (cipher.Block, error)
	blockSize int
}{
	AlgAES:       {aes.NewCipher, aes.BlockSize},
	AlgTripleDES: {des.NewTripleDESCipher, des.BlockSize},
}

type persistedKey struct {
	algorithm string
	key       []byte
}

// SoftwareEngine implements Engine and KeyStore on top of the Go
// cryptography packages.
type SoftwareEngine struct {
	mu           sync.Mutex
	reusableHash bool
	next         uint64

	algorithms map[AlgorithmHandle]*algorithm
	hashes     map[HashHandle]*hashObject
	keys       map[KeyHandle]*keyObject
	persisted  map[string]*persistedKey
}

// Option configures a SoftwareEngine.
type Option func(*SoftwareEngine)

// WithoutReusableHash makes CreateHash reject CreateHashReusable with
// StatusInvalidParameter, like platforms that predate reusable hash objects.
func WithoutReusableHash() Option {
	return func(e *SoftwareEngine) {
		e.reusableHash = false
	}
}

// NewSoftwareEngine creates an engine with empty object tables.
func NewSoftwareEngine(opts ...Option) *SoftwareEngine {
	e := &SoftwareEngine{
		reusableHash: true,
		algorithms:   make(map[AlgorithmHandle]*algorithm),
		hashes:       make(map[HashHandle]*hashObject),
		keys:         make(map[KeyHandle]*keyObject),
		persisted:    make(map[string]*persistedKey),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SupportsReusableHash reports whether reusable hash objects are available.
func (e *SoftwareEngine) SupportsReusableHash() bool {
	return e.reusableHash
}

// nextHandle must be called with e.mu held. Zero is never handed out.
func (e *SoftwareEngine) nextHandle() uint64 {
	e.next++
	return e.next
}

func (e *SoftwareEngine) OpenAlgorithm(name string, flags OpenFlags) (AlgorithmHandle, error) {
	alg := &algorithm{name: name, flags: flags}
	if newHash, ok := hashAlgorithms[name]; ok {
		alg.newHash = newHash
		alg.digestSize = newHash().Size()
	} else if b, ok := blockAlgorithms[name]; ok {
		if flags&OpenFlagHMAC != 0 {
			return 0, StatusInvalidParameter
		}
		alg.newBlock = b.newBlock
		alg.blockSize = b.blockSize
	} else {
		return 0, StatusNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := AlgorithmHandle(e.nextHandle())
	e.algorithms[h] = alg
	return h, nil
}

func (e *SoftwareEngine) GetProperty(h AlgorithmHandle, prop Property) (int, error) {
	alg, err := e.algorithm(h)
	if err != nil {
		return 0, err
	}

	switch prop {
	case PropertyHashLength:
		if !alg.isHash() {
			return 0, StatusNotSupported
		}
		return alg.digestSize, nil
	case PropertyBlockLength:
		if alg.isHash() {
			return 0, StatusNotSupported
		}
		return alg.blockSize, nil
	default:
		return 0, StatusNotSupported
	}
}

func (e *SoftwareEngine) algorithm(h AlgorithmHandle) (*algorithm, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alg, ok := e.algorithms[h]
	if !ok {
		return nil, StatusInvalidHandle
	}
	return alg, nil
}

// StorePersistedKey copies key into the protected store under name.
func (e *SoftwareEngine) StorePersistedKey(name, algorithm string, key []byte) error {
	b, ok := blockAlgorithms[algorithm]
	if !ok {
		return StatusNotFound
	}
	if _, err := b.newBlock(key); err != nil {
		return StatusInvalidParameter
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.persisted[name]; exists {
		return StatusObjectNameCollision
	}
	e.persisted[name] = &persistedKey{
		algorithm: algorithm,
		key:       append([]byte(nil), key...),
	}
	return nil
}

// DeletePersistedKey removes and wipes a stored key.
func (e *SoftwareEngine) DeletePersistedKey(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	pk, ok := e.persisted[name]
	if !ok {
		return StatusNotFound
	}
	delete(e.persisted, name)
	clear(pk.key)
	return nil
}
