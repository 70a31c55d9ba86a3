package crypto

import (
	"fmt"

	"go.uber.org/zap"

	"temporal-sa/crypto-provider/engine"
)

// CipherMode is the block chaining mode of a SymmetricAlgorithm.
type CipherMode int

const (
	ModeECB CipherMode = iota + 1
	ModeCBC
	ModeCFB
)

func (m CipherMode) String() string {
	switch m {
	case ModeECB:
		return "ECB"
	case ModeCBC:
		return "CBC"
	case ModeCFB:
		return "CFB"
	default:
		return fmt.Sprintf("CipherMode(%d)", int(m))
	}
}

// ParseCipherMode maps a configuration or flag value to a CipherMode.
func ParseCipherMode(s string) (CipherMode, error) {
	for m := ModeECB; m <= ModeCFB; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, configError("parse mode", "unknown cipher mode %q", s)
}

func (m CipherMode) chaining() engine.ChainingMode {
	switch m {
	case ModeECB:
		return engine.ChainingECB
	case ModeCBC:
		return engine.ChainingCBC
	default:
		return engine.ChainingCFB
	}
}

// Transform is a single encryption or decryption bound to one engine key
// object. It owns that key object and releases it on Close.
//
// Data can be pushed through TransformBlock and TransformFinalBlock, or in
// one call with TransformOneShot. A Transform is not safe for concurrent use.
type Transform struct {
	engine     engine.Engine
	key        engine.KeyHandle
	mode       CipherMode
	padding    PaddingMode
	encrypting bool

	unit    int // padding unit: block size, or feedback bytes under CFB
	segment int // CFB feedback bytes, zero otherwise

	iv     []byte // chaining state, updated by the engine
	origIV []byte

	// decryption holds back the last unit until TransformFinalBlock so
	// padding can be removed
	held []byte

	closed bool
	logger *zap.Logger
}

type transformParams struct {
	mode         CipherMode
	padding      PaddingMode
	iv           []byte
	blockSize    int
	feedbackBits int
	encrypting   bool
}

func newTransform(eng engine.Engine, key engine.KeyHandle, p transformParams, logger *zap.Logger) *Transform {
	t := &Transform{
		engine:     eng,
		key:        key,
		mode:       p.mode,
		padding:    p.padding,
		encrypting: p.encrypting,
		unit:       p.blockSize,
		logger:     logger,
	}
	if p.mode == ModeCFB {
		t.segment = p.feedbackBits / 8
		t.unit = t.segment
	}
	if p.mode != ModeECB {
		t.iv = make([]byte, len(p.iv))
		copy(t.iv, p.iv)
		t.origIV = make([]byte, len(p.iv))
		copy(t.origIV, p.iv)
	}
	return t
}

// InputBlockSize returns the unit TransformBlock input must be aligned to.
func (t *Transform) InputBlockSize() int {
	return t.unit
}

// OutputLength returns the number of bytes TransformOneShot writes when
// encrypting n bytes, or the upper bound when decrypting them.
func (t *Transform) OutputLength(n int) int {
	if t.encrypting {
		return t.padding.paddedLength(n, t.unit)
	}
	return n
}

// TransformOneShot runs the whole of input through the transform from its
// initial IV. When dst is too small it returns false with a nil error and
// leaves dst untouched, so callers can retry with a larger buffer.
func (t *Transform) TransformOneShot(input, dst []byte) (bool, int, error) {
	if t.closed {
		return false, 0, disposedError("transform")
	}
	t.restart()

	if t.encrypting {
		return t.encryptOneShot(input, dst)
	}
	return t.decryptOneShot(input, dst)
}

func (t *Transform) encryptOneShot(input, dst []byte) (bool, int, error) {
	const op = "encrypt"
	if t.padding == PaddingNone && len(input)%t.unit != 0 {
		return false, 0, configError(op, "input length %d is not a multiple of %d", len(input), t.unit)
	}
	n := t.padding.paddedLength(len(input), t.unit)
	if len(dst) < n {
		return false, 0, nil
	}

	padded, err := t.padding.pad(input, t.unit)
	if err != nil {
		return false, 0, err
	}
	if t.padding != PaddingNone {
		defer Zero(padded)
	}

	if err := t.engine.Encrypt(t.key, t.mode.chaining(), t.iv, t.segment, padded, dst[:n]); err != nil {
		return false, 0, nativeError(op, err)
	}
	return true, n, nil
}

func (t *Transform) decryptOneShot(input, dst []byte) (bool, int, error) {
	const op = "decrypt"
	if len(input)%t.unit != 0 {
		return false, 0, configError(op, "input length %d is not a multiple of %d", len(input), t.unit)
	}
	// Padded plaintext never exceeds the ciphertext; no need for scratch.
	if t.padding == PaddingNone || t.padding == PaddingZeros {
		if len(dst) < len(input) {
			return false, 0, nil
		}
		if err := t.engine.Decrypt(t.key, t.mode.chaining(), t.iv, t.segment, input, dst[:len(input)]); err != nil {
			return false, 0, nativeError(op, err)
		}
		return true, len(input), nil
	}

	scratch := make([]byte, len(input))
	defer Zero(scratch)

	if err := t.engine.Decrypt(t.key, t.mode.chaining(), t.iv, t.segment, input, scratch); err != nil {
		return false, 0, nativeError(op, err)
	}
	n, err := t.padding.unpad(scratch, t.unit)
	if err != nil {
		return false, 0, err
	}
	if len(dst) < n {
		return false, 0, nil
	}
	copy(dst, scratch[:n])
	return true, n, nil
}

// TransformBlock transforms input, which must be a multiple of
// InputBlockSize, and returns the number of bytes written to dst. Padding is
// only applied by TransformFinalBlock.
func (t *Transform) TransformBlock(input, dst []byte) (int, error) {
	const op = "transform block"
	if t.closed {
		return 0, disposedError(op)
	}
	if len(input)%t.unit != 0 {
		return 0, configError(op, "input length %d is not a multiple of %d", len(input), t.unit)
	}

	if t.encrypting {
		if len(dst) < len(input) {
			return 0, configError(op, "destination is %d bytes, need %d", len(dst), len(input))
		}
		if err := t.engine.Encrypt(t.key, t.mode.chaining(), t.iv, t.segment, input, dst[:len(input)]); err != nil {
			return 0, nativeError(op, err)
		}
		return len(input), nil
	}

	if !t.holdsBack() {
		if len(dst) < len(input) {
			return 0, configError(op, "destination is %d bytes, need %d", len(dst), len(input))
		}
		if err := t.engine.Decrypt(t.key, t.mode.chaining(), t.iv, t.segment, input, dst[:len(input)]); err != nil {
			return 0, nativeError(op, err)
		}
		return len(input), nil
	}

	data := make([]byte, 0, len(t.held)+len(input))
	data = append(data, t.held...)
	data = append(data, input...)
	if len(data) == 0 {
		return 0, nil
	}
	ready := len(data) - t.unit
	if len(dst) < ready {
		return 0, configError(op, "destination is %d bytes, need %d", len(dst), ready)
	}
	if err := t.engine.Decrypt(t.key, t.mode.chaining(), t.iv, t.segment, data[:ready], dst[:ready]); err != nil {
		return 0, nativeError(op, err)
	}
	t.held = data[ready:]
	return ready, nil
}

// TransformFinalBlock transforms the remaining input, applies or removes
// padding, and rewinds the transform to its initial IV.
func (t *Transform) TransformFinalBlock(input []byte) ([]byte, error) {
	const op = "transform final block"
	if t.closed {
		return nil, disposedError(op)
	}
	defer t.restart()

	if t.encrypting {
		if t.padding == PaddingNone && len(input)%t.unit != 0 {
			return nil, configError(op, "input length %d is not a multiple of %d", len(input), t.unit)
		}
		padded, err := t.padding.pad(input, t.unit)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(padded))
		if err := t.engine.Encrypt(t.key, t.mode.chaining(), t.iv, t.segment, padded, out); err != nil {
			return nil, nativeError(op, err)
		}
		if t.padding != PaddingNone {
			Zero(padded)
		}
		return out, nil
	}

	data := make([]byte, 0, len(t.held)+len(input))
	data = append(data, t.held...)
	data = append(data, input...)
	if len(data)%t.unit != 0 {
		return nil, configError(op, "input length %d is not a multiple of %d", len(data), t.unit)
	}
	out := make([]byte, len(data))
	if err := t.engine.Decrypt(t.key, t.mode.chaining(), t.iv, t.segment, data, out); err != nil {
		return nil, nativeError(op, err)
	}
	n, err := t.padding.unpad(out, t.unit)
	if err != nil {
		Zero(out)
		return nil, err
	}
	return out[:n], nil
}

// Close destroys the engine key object and clears the chaining state. It
// never fails and may be called more than once.
func (t *Transform) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.engine.DestroyKey(t.key); err != nil {
		t.logger.Warn("failed to destroy key object", zap.Error(err))
	}
	Zero(t.iv)
	Zero(t.origIV)
	t.held = nil
	return nil
}

func (t *Transform) holdsBack() bool {
	return t.padding != PaddingNone && t.padding != PaddingZeros
}

func (t *Transform) restart() {
	copy(t.iv, t.origIV)
	t.held = nil
}
