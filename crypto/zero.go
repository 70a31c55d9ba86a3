package crypto

import "crypto/subtle"

// Zero overwrites b with zeros. The constant-time copy keeps the compiler
// from eliding the store.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zeros := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zeros)
}
