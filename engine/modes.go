package engine

import (
	"crypto/cipher"
	"crypto/subtle"
)

func cryptECB(b cipher.Block, encrypt bool, dst, src []byte) {
	bs := b.BlockSize()
	for i := 0; i < len(src); i += bs {
		if encrypt {
			b.Encrypt(dst[i:i+bs], src[i:i+bs])
		} else {
			b.Decrypt(dst[i:i+bs], src[i:i+bs])
		}
	}
}

// cryptCBC leaves the last ciphertext block in iv.
func cryptCBC(b cipher.Block, encrypt bool, iv, dst, src []byte) {
	if len(src) == 0 {
		return
	}
	bs := b.BlockSize()
	last := len(src) - bs

	if encrypt {
		cipher.NewCBCEncrypter(b, iv).CryptBlocks(dst[:len(src)], src)
		copy(iv, dst[last:len(src)])
		return
	}

	next := make([]byte, bs)
	copy(next, src[last:])
	cipher.NewCBCDecrypter(b, iv).CryptBlocks(dst[:len(src)], src)
	copy(iv, next)
}

// cryptCFB runs CFB with a segmentSize-byte feedback over the shift
// register held in iv, which is left ready for the next segment.
func cryptCFB(b cipher.Block, encrypt bool, register []byte, segmentSize int, dst, src []byte) {
	bs := b.BlockSize()
	keystream := make([]byte, bs)
	ciphertext := make([]byte, segmentSize)

	for i := 0; i < len(src); i += segmentSize {
		in, out := src[i:i+segmentSize], dst[i:i+segmentSize]
		b.Encrypt(keystream, register)
		if encrypt {
			subtle.XORBytes(out, in, keystream[:segmentSize])
			copy(ciphertext, out)
		} else {
			copy(ciphertext, in)
			subtle.XORBytes(out, in, keystream[:segmentSize])
		}
		copy(register, register[segmentSize:])
		copy(register[bs-segmentSize:], ciphertext)
	}
	clear(keystream)
}
