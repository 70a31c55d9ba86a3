package crypto

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an illegal parameter combination detected
	// before any engine call was made.
	ErrConfiguration = errors.New("invalid cryptographic configuration")
	// ErrNativeOperation reports an engine failure. The provider that
	// returned it should be closed and rebuilt.
	ErrNativeOperation  = errors.New("native cryptographic operation failed")
	ErrPadding          = errors.New("padding is invalid and cannot be removed")
	ErrKeyNotExportable = errors.New("key is not exportable")
	ErrDisposed         = errors.New("provider is closed")
)

// CryptoError is returned by the hash and cipher providers. Both Kind and
// the underlying engine status match errors.Is.
type CryptoError struct {
	Op   string
	Kind error
	Err  error
}

func (e *CryptoError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("crypto: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("crypto: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *CryptoError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configError(op, format string, args ...interface{}) error {
	return &CryptoError{Op: op, Kind: ErrConfiguration, Err: fmt.Errorf(format, args...)}
}

func nativeError(op string, err error) error {
	return &CryptoError{Op: op, Kind: ErrNativeOperation, Err: err}
}

func paddingError(op string) error {
	return &CryptoError{Op: op, Kind: ErrPadding}
}

func disposedError(op string) error {
	return &CryptoError{Op: op, Kind: ErrDisposed}
}
