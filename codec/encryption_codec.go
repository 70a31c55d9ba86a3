package codec

import (
	"context"
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/crypto"
)

const (
	// MetadataEncodingEncrypted is "binary/encrypted"
	MetadataEncodingEncrypted = "binary/encrypted"
	// MetadataEncryptionKeyID is "encryption-key-id"
	MetadataEncryptionKeyID = "encryption-key-id"
	// MetadataEncryptedDataKey is "encrypted-data-key"
	MetadataEncryptedDataKey = "encrypted-data-key"

	// PurposeEncryptionKeyAuth is the purpose for encryption key authentication
	PurposeEncryptionKeyAuth = "encryption-key-auth"
	// PurposePayloadAuth is the purpose for payload authentication
	PurposePayloadAuth = "payload-auth"
)

// Codec implements PayloadCodec using the crypto package's envelope cipher.
type Codec struct {
	KeyID        string
	Cipher       *crypto.Cipher
	CodecContext map[string]string
}

var _ converter.PayloadCodec = (*Codec)(nil)

// NewEncryptionCodec creates a codec sealing payloads under data keys from mm.
func NewEncryptionCodec(mm crypto.MaterialsManager, cache *algcache.Cache, codecContext map[string]string, encryptionKeyID string, metricsHandler client.MetricsHandler) *Codec {
	return &Codec{
		KeyID:        encryptionKeyID,
		Cipher:       crypto.NewCipher(mm, cache, crypto.WithCipherMetrics(metricsHandler)),
		CodecContext: codecContext,
	}
}

// NewEncryptionCodecWithCaching puts a caching materials manager in front
// of mm so data keys are reused within the cachingConfig limits.
func NewEncryptionCodecWithCaching(
	mm crypto.MaterialsManager,
	cache *algcache.Cache,
	codecContext map[string]string,
	encryptionKeyID string,
	metricsHandler client.MetricsHandler,
	cachingConfig crypto.CachingConfig,
) (*Codec, error) {
	cachingMM, err := crypto.NewCachingMaterialsManager(mm, cache, cachingConfig, metricsHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to create caching materials manager: %w", err)
	}

	return NewEncryptionCodec(cachingMM, cache, codecContext, encryptionKeyID, metricsHandler), nil
}

// createCryptoContext creates a crypto context for the given purpose, encryption key ID and codec context
func (e *Codec) createCryptoContext(purpose, encryptionKeyID string, codecContext map[string]string) crypto.CryptoContext {
	cryptoContext := crypto.CryptoContext{
		"purpose":         purpose,
		"encryptionKeyID": encryptionKeyID,
	}

	// Add all codec context values to the crypto context
	for k, v := range codecContext {
		cryptoContext[k] = v
	}

	return cryptoContext
}

// Encode implements converter.PayloadCodec.Encode.
func (e *Codec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		origBytes, err := p.Marshal()
		if err != nil {
			return payloads, err
		}

		keyContext := e.createCryptoContext(PurposeEncryptionKeyAuth, e.KeyID, e.CodecContext)
		payloadContext := e.createCryptoContext(PurposePayloadAuth, e.KeyID, e.CodecContext)

		input := &crypto.EncryptInput{
			Plaintext:      origBytes,
			KeyContext:     keyContext,
			PayloadContext: payloadContext,
		}

		ciphertext, encryptedKey, err := e.Cipher.Encrypt(context.Background(), input)
		crypto.Zero(origBytes)
		if err != nil {
			return payloads, err
		}

		result[i] = &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding: []byte(MetadataEncodingEncrypted),
				MetadataEncryptionKeyID:    []byte(e.KeyID),
				MetadataEncryptedDataKey:   encryptedKey,
			},
			Data: ciphertext,
		}
	}

	return result, nil
}

// Decode implements converter.PayloadCodec.Decode.
func (e *Codec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		// Only if it's encrypted
		if string(p.Metadata[converter.MetadataEncoding]) != MetadataEncodingEncrypted {
			result[i] = p
			continue
		}

		keyID, ok := p.Metadata[MetadataEncryptionKeyID]
		if !ok {
			return payloads, fmt.Errorf("no encryption key id")
		}

		keyContext := e.createCryptoContext(PurposeEncryptionKeyAuth, string(keyID), e.CodecContext)
		payloadContext := e.createCryptoContext(PurposePayloadAuth, string(keyID), e.CodecContext)

		// Get the encrypted key from metadata
		encryptedKey, ok := p.Metadata[MetadataEncryptedDataKey]
		if !ok {
			return payloads, fmt.Errorf("no encrypted key in payload")
		}

		input := &crypto.DecryptInput{
			Ciphertext:     p.Data,
			EncryptedKey:   encryptedKey,
			KeyContext:     keyContext,
			PayloadContext: payloadContext,
		}

		decrypted, err := e.Cipher.Decrypt(context.Background(), input)
		if err != nil {
			return payloads, err
		}

		result[i] = &commonpb.Payload{}
		err = result[i].Unmarshal(decrypted)
		if err != nil {
			return payloads, err
		}
	}

	return result, nil
}
