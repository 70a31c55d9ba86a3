package engine

import (
	"encoding"
	"hash"
)

const (
	ipad = 0x36
	opad = 0x5c
)

type hashObject struct {
	alg      *algorithm
	inner    hash.Hash
	reusable bool
	finished bool

	// HMAC only: the key XORed with ipad and opad, one block each.
	ipadKey []byte
	opadKey []byte
}

func newHashObject(alg *algorithm, key []byte, reusable bool) *hashObject {
	obj := &hashObject{
		alg:      alg,
		inner:    alg.newHash(),
		reusable: reusable,
	}
	if alg.flags&OpenFlagHMAC != 0 {
		blockSize := obj.inner.BlockSize()
		if len(key) > blockSize {
			h := alg.newHash()
			h.Write(key)
			key = h.Sum(nil)
		}
		obj.ipadKey = make([]byte, blockSize)
		obj.opadKey = make([]byte, blockSize)
		copy(obj.ipadKey, key)
		copy(obj.opadKey, key)
		for i := range obj.ipadKey {
			obj.ipadKey[i] ^= ipad
			obj.opadKey[i] ^= opad
		}
		obj.inner.Write(obj.ipadKey)
	}
	return obj
}

func (o *hashObject) reset() {
	o.inner.Reset()
	if o.ipadKey != nil {
		o.inner.Write(o.ipadKey)
	}
	o.finished = false
}

func (o *hashObject) sum(out []byte) {
	digest := o.inner.Sum(nil)
	if o.opadKey != nil {
		outer := o.alg.newHash()
		outer.Write(o.opadKey)
		outer.Write(digest)
		digest = outer.Sum(digest[:0])
	}
	copy(out, digest)
	clear(digest)
}

func (o *hashObject) clone() (*hashObject, error) {
	m, ok := o.inner.(encoding.BinaryMarshaler)
	if !ok {
		return nil, StatusNotSupported
	}
	state, err := m.MarshalBinary()
	if err != nil {
		return nil, StatusNotSupported
	}
	defer clear(state)

	inner := o.alg.newHash()
	u, ok := inner.(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, StatusNotSupported
	}
	if err := u.UnmarshalBinary(state); err != nil {
		return nil, StatusNotSupported
	}

	dup := &hashObject{
		alg:      o.alg,
		inner:    inner,
		reusable: o.reusable,
		finished: o.finished,
	}
	if o.ipadKey != nil {
		dup.ipadKey = append([]byte(nil), o.ipadKey...)
		dup.opadKey = append([]byte(nil), o.opadKey...)
	}
	return dup, nil
}

func (o *hashObject) wipe() {
	clear(o.ipadKey)
	clear(o.opadKey)
	o.inner.Reset()
}

func (e *SoftwareEngine) CreateHash(h AlgorithmHandle, key []byte, flags CreateHashFlags) (HashHandle, error) {
	alg, err := e.algorithm(h)
	if err != nil {
		return 0, err
	}
	if !alg.isHash() {
		return 0, StatusInvalidHandle
	}
	if alg.flags&OpenFlagHMAC == 0 && len(key) > 0 {
		return 0, StatusInvalidParameter
	}
	reusable := flags&CreateHashReusable != 0
	if reusable && !e.reusableHash {
		return 0, StatusInvalidParameter
	}

	obj := newHashObject(alg, key, reusable)

	e.mu.Lock()
	defer e.mu.Unlock()
	hh := HashHandle(e.nextHandle())
	e.hashes[hh] = obj
	return hh, nil
}

func (e *SoftwareEngine) hashObject(h HashHandle) (*hashObject, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.hashes[h]
	if !ok {
		return nil, StatusInvalidHandle
	}
	return obj, nil
}

func (e *SoftwareEngine) HashData(h HashHandle, data []byte) error {
	obj, err := e.hashObject(h)
	if err != nil {
		return err
	}
	if obj.finished {
		return StatusInvalidHandle
	}
	obj.inner.Write(data)
	return nil
}

func (e *SoftwareEngine) FinishHash(h HashHandle, out []byte) error {
	obj, err := e.hashObject(h)
	if err != nil {
		return err
	}
	if obj.finished {
		return StatusInvalidHandle
	}
	if len(out) != obj.alg.digestSize {
		return StatusInvalidParameter
	}

	obj.sum(out)
	if obj.reusable {
		obj.reset()
	} else {
		obj.finished = true
	}
	return nil
}

func (e *SoftwareEngine) DuplicateHash(h HashHandle) (HashHandle, error) {
	obj, err := e.hashObject(h)
	if err != nil {
		return 0, err
	}
	dup, err := obj.clone()
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	hh := HashHandle(e.nextHandle())
	e.hashes[hh] = dup
	return hh, nil
}

func (e *SoftwareEngine) DestroyHash(h HashHandle) error {
	e.mu.Lock()
	obj, ok := e.hashes[h]
	delete(e.hashes, h)
	e.mu.Unlock()

	if !ok {
		return StatusInvalidHandle
	}
	obj.wipe()
	return nil
}

// LiveHashObjects returns the number of hash objects not yet destroyed.
func (e *SoftwareEngine) LiveHashObjects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.hashes)
}
