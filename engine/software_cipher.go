package engine

import (
	"crypto/cipher"
)

type keyObject struct {
	alg       string
	block     cipher.Block
	raw       []byte
	persisted bool
}

func (e *SoftwareEngine) ImportKey(h AlgorithmHandle, key []byte) (KeyHandle, error) {
	alg, err := e.algorithm(h)
	if err != nil {
		return 0, err
	}
	if alg.isHash() {
		return 0, StatusInvalidHandle
	}
	block, err := alg.newBlock(key)
	if err != nil {
		return 0, StatusInvalidParameter
	}

	return e.addKey(&keyObject{
		alg:   alg.name,
		block: block,
		raw:   append([]byte(nil), key...),
	}), nil
}

func (e *SoftwareEngine) OpenPersistedKey(name string) (KeyHandle, error) {
	e.mu.Lock()
	pk, ok := e.persisted[name]
	e.mu.Unlock()
	if !ok {
		return 0, StatusNotFound
	}

	block, err := blockAlgorithms[pk.algorithm].newBlock(pk.key)
	if err != nil {
		return 0, StatusInvalidParameter
	}
	return e.addKey(&keyObject{
		alg:       pk.algorithm,
		block:     block,
		persisted: true,
	}), nil
}

func (e *SoftwareEngine) addKey(obj *keyObject) KeyHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	kh := KeyHandle(e.nextHandle())
	e.keys[kh] = obj
	return kh
}

func (e *SoftwareEngine) keyObject(k KeyHandle) (*keyObject, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.keys[k]
	if !ok {
		return nil, StatusInvalidHandle
	}
	return obj, nil
}

func (e *SoftwareEngine) ExportKey(k KeyHandle) ([]byte, error) {
	obj, err := e.keyObject(k)
	if err != nil {
		return nil, err
	}
	if obj.persisted {
		return nil, StatusNotSupported
	}
	return append([]byte(nil), obj.raw...), nil
}

func (e *SoftwareEngine) DestroyKey(k KeyHandle) error {
	e.mu.Lock()
	obj, ok := e.keys[k]
	delete(e.keys, k)
	e.mu.Unlock()

	if !ok {
		return StatusInvalidHandle
	}
	clear(obj.raw)
	return nil
}

// LiveKeyObjects returns the number of key objects not yet destroyed.
func (e *SoftwareEngine) LiveKeyObjects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.keys)
}

func (e *SoftwareEngine) Encrypt(k KeyHandle, mode ChainingMode, iv []byte, segmentSize int, src, dst []byte) error {
	return e.crypt(k, mode, iv, segmentSize, src, dst, true)
}

func (e *SoftwareEngine) Decrypt(k KeyHandle, mode ChainingMode, iv []byte, segmentSize int, src, dst []byte) error {
	return e.crypt(k, mode, iv, segmentSize, src, dst, false)
}

func (e *SoftwareEngine) crypt(k KeyHandle, mode ChainingMode, iv []byte, segmentSize int, src, dst []byte, encrypt bool) error {
	obj, err := e.keyObject(k)
	if err != nil {
		return err
	}
	if len(dst) < len(src) {
		return StatusBufferTooSmall
	}
	bs := obj.block.BlockSize()

	switch mode {
	case ChainingECB:
		if len(src)%bs != 0 {
			return StatusInvalidBufferSize
		}
		cryptECB(obj.block, encrypt, dst, src)
	case ChainingCBC:
		if len(iv) != bs {
			return StatusInvalidParameter
		}
		if len(src)%bs != 0 {
			return StatusInvalidBufferSize
		}
		cryptCBC(obj.block, encrypt, iv, dst, src)
	case ChainingCFB:
		if len(iv) != bs || segmentSize <= 0 || segmentSize > bs {
			return StatusInvalidParameter
		}
		// Keys in the protected store only run CFB with 8-bit feedback.
		if obj.persisted && segmentSize != 1 {
			return StatusNotSupported
		}
		if len(src)%segmentSize != 0 {
			return StatusInvalidBufferSize
		}
		cryptCFB(obj.block, encrypt, iv, segmentSize, dst, src)
	default:
		return StatusNotSupported
	}
	return nil
}
