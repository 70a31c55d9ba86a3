package crypto

import (
	"encoding/json"
)

// CryptoContext is bound to a data key by its key source and authenticated
// with every envelope
type CryptoContext map[string]string

// ContextToBytes returns a deterministic encoding of ctx, used as the
// additional authenticated data of envelopes and KMS calls. An empty or
// nil context encodes as nil.
func ContextToBytes(ctx CryptoContext) []byte {
	if len(ctx) == 0 {
		return nil
	}
	// encoding/json sorts map keys
	data, err := json.Marshal(map[string]string(ctx))
	if err != nil {
		return nil
	}
	return data
}
