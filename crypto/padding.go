package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// PaddingMode selects how the final partial block is filled on encryption
// and checked on decryption.
type PaddingMode int

const (
	// PaddingNone requires input aligned to the padding unit.
	PaddingNone PaddingMode = iota + 1
	PaddingPKCS7
	// PaddingZeros fills with zero bytes. Decryption does not strip them.
	PaddingZeros
	PaddingANSIX923
	PaddingISO10126
)

func (m PaddingMode) String() string {
	switch m {
	case PaddingNone:
		return "None"
	case PaddingPKCS7:
		return "PKCS7"
	case PaddingZeros:
		return "Zeros"
	case PaddingANSIX923:
		return "ANSIX923"
	case PaddingISO10126:
		return "ISO10126"
	default:
		return fmt.Sprintf("PaddingMode(%d)", int(m))
	}
}

func (m PaddingMode) valid() bool {
	return m >= PaddingNone && m <= PaddingISO10126
}

// ParsePaddingMode maps a configuration or flag value to a PaddingMode.
func ParsePaddingMode(s string) (PaddingMode, error) {
	for m := PaddingNone; m <= PaddingISO10126; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, configError("parse padding", "unknown padding mode %q", s)
}

// paddedLength is the ciphertext length produced when encrypting n bytes.
func (m PaddingMode) paddedLength(n, unit int) int {
	switch m {
	case PaddingNone:
		return n
	case PaddingZeros:
		if n%unit == 0 {
			return n
		}
		return n + unit - n%unit
	default:
		// Always adds at least one byte, a full unit when aligned.
		return n + unit - n%unit
	}
}

// pad appends padding to the last partial unit of data.
func (m PaddingMode) pad(data []byte, unit int) ([]byte, error) {
	n := m.paddedLength(len(data), unit)
	if m == PaddingNone {
		if len(data)%unit != 0 {
			return nil, configError("pad", "input length %d is not a multiple of %d", len(data), unit)
		}
		return data, nil
	}

	out := make([]byte, n)
	copy(out, data)
	fill := n - len(data)
	if fill == 0 {
		return out, nil
	}

	switch m {
	case PaddingPKCS7:
		for i := len(data); i < n; i++ {
			out[i] = byte(fill)
		}
	case PaddingANSIX923:
		out[n-1] = byte(fill)
	case PaddingISO10126:
		if _, err := rand.Read(out[len(data) : n-1]); err != nil {
			return nil, fmt.Errorf("failed to generate padding: %w", err)
		}
		out[n-1] = byte(fill)
	}
	return out, nil
}

// unpad returns the length of data once padding is removed.
func (m PaddingMode) unpad(data []byte, unit int) (int, error) {
	const op = "remove padding"

	switch m {
	case PaddingNone, PaddingZeros:
		return len(data), nil
	}

	if len(data) == 0 || len(data)%unit != 0 {
		return 0, paddingError(op)
	}
	fill := int(data[len(data)-1])
	if fill == 0 || fill > unit {
		return 0, paddingError(op)
	}

	body := len(data) - fill
	switch m {
	case PaddingPKCS7:
		good := 1
		for _, b := range data[body : len(data)-1] {
			good &= subtle.ConstantTimeByteEq(b, byte(fill))
		}
		if good != 1 {
			return 0, paddingError(op)
		}
	case PaddingANSIX923:
		good := 1
		for _, b := range data[body : len(data)-1] {
			good &= subtle.ConstantTimeByteEq(b, 0)
		}
		if good != 1 {
			return 0, paddingError(op)
		}
	}
	return body, nil
}
