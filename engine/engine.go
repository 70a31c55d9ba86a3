// Package engine defines the platform cryptographic engine the providers
// delegate to, together with a software implementation of it.
//
// The API is handle based: algorithm, hash and key objects live inside the
// engine and callers only ever see opaque integer handles. Failures are
// reported as Status values.
package engine

type (
	// AlgorithmHandle identifies an opened algorithm provider. Algorithm
	// handles are immutable and may be shared between goroutines.
	AlgorithmHandle uint64

	// HashHandle identifies a hash object.
	HashHandle uint64

	// KeyHandle identifies a symmetric key object.
	KeyHandle uint64

	// OpenFlags modify how an algorithm provider is opened.
	OpenFlags uint32

	// CreateHashFlags modify how a hash object is created.
	CreateHashFlags uint32

	// ChainingMode selects the block chaining used by Encrypt and Decrypt.
	ChainingMode int

	// Property names a fixed algorithm attribute.
	Property string
)

const (
	OpenFlagNone OpenFlags = 0
	// OpenFlagHMAC opens a hash algorithm for keyed (HMAC) use.
	OpenFlagHMAC OpenFlags = 0x00000008
)

const (
	CreateHashNone CreateHashFlags = 0
	// CreateHashReusable requests a hash object that resets itself after
	// FinishHash instead of being consumed.
	CreateHashReusable CreateHashFlags = 0x00000020
)

const (
	ChainingECB ChainingMode = iota + 1
	ChainingCBC
	ChainingCFB
)

const (
	PropertyHashLength  Property = "HashDigestLength"
	PropertyBlockLength Property = "BlockLength"
)

// Algorithm identifiers understood by OpenAlgorithm.
const (
	AlgMD5       = "MD5"
	AlgSHA1      = "SHA1"
	AlgSHA256    = "SHA256"
	AlgSHA384    = "SHA384"
	AlgSHA512    = "SHA512"
	AlgSHA3_256  = "SHA3-256"
	AlgSHA3_384  = "SHA3-384"
	AlgSHA3_512  = "SHA3-512"
	AlgAES       = "AES"
	AlgTripleDES = "3DES"
)

func (m ChainingMode) String() string {
	switch m {
	case ChainingECB:
		return "ECB"
	case ChainingCBC:
		return "CBC"
	case ChainingCFB:
		return "CFB"
	default:
		return "unknown"
	}
}

// Engine is the native cryptographic API.
//
// Hash and key objects are not safe for concurrent use; the engine itself is.
type Engine interface {
	OpenAlgorithm(name string, flags OpenFlags) (AlgorithmHandle, error)
	GetProperty(alg AlgorithmHandle, prop Property) (int, error)

	// CreateHash creates a hash object. key must be nil unless the algorithm
	// was opened with OpenFlagHMAC.
	CreateHash(alg AlgorithmHandle, key []byte, flags CreateHashFlags) (HashHandle, error)
	HashData(h HashHandle, data []byte) error
	// FinishHash writes the digest into out, which must be exactly the
	// digest length. Non-reusable objects cannot be used afterwards.
	FinishHash(h HashHandle, out []byte) error
	DuplicateHash(h HashHandle) (HashHandle, error)
	DestroyHash(h HashHandle) error

	ImportKey(alg AlgorithmHandle, key []byte) (KeyHandle, error)
	// OpenPersistedKey opens a key held in the engine's protected store.
	// Persisted keys cannot be exported.
	OpenPersistedKey(name string) (KeyHandle, error)
	ExportKey(k KeyHandle) ([]byte, error)
	// Encrypt transforms src into dst. len(src) must be a multiple of the
	// block size (ECB, CBC) or of segmentSize (CFB). iv is updated in place
	// so consecutive calls chain.
	Encrypt(k KeyHandle, mode ChainingMode, iv []byte, segmentSize int, src, dst []byte) error
	Decrypt(k KeyHandle, mode ChainingMode, iv []byte, segmentSize int, src, dst []byte) error
	DestroyKey(k KeyHandle) error
}

// KeyStore holds named keys whose bytes never leave the engine.
type KeyStore interface {
	StorePersistedKey(name, algorithm string, key []byte) error
	DeletePersistedKey(name string) error
}
