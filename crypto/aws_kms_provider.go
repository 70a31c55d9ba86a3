package crypto

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
)

// AWSKMSOptions contains configuration options for AWSKMSProvider
type AWSKMSOptions struct {
	// KeyID is the ARN or ID of the KMS key that wraps data keys
	KeyID string
}

// AWSKMSProvider implements MaterialsManager using AWS KMS. Data keys are
// requested as DataKeySize raw bytes since no KMS KeySpec covers a
// cipher key and a MAC key together.
type AWSKMSProvider struct {
	kmsClient kmsiface.KMSAPI
	keyID     string
}

// NewAWSKMSProvider creates a new KMS-based materials manager
func NewAWSKMSProvider(kmsClient kmsiface.KMSAPI, options AWSKMSOptions) *AWSKMSProvider {
	return &AWSKMSProvider{
		kmsClient: kmsClient,
		keyID:     options.KeyID,
	}
}

func encryptionContext(cryptoCtx CryptoContext) map[string]*string {
	ec := make(map[string]*string, len(cryptoCtx))
	for key, value := range cryptoCtx {
		ec[key] = aws.String(value)
	}
	return ec
}

// GetMaterial generates a data key bound to cryptoCtx
func (k *AWSKMSProvider) GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error) {
	input := &kms.GenerateDataKeyInput{
		KeyId:             aws.String(k.keyID),
		NumberOfBytes:     aws.Int64(DataKeySize),
		EncryptionContext: encryptionContext(cryptoCtx),
	}

	result, err := k.kmsClient.GenerateDataKeyWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	return &Material{
		PlaintextKey: result.Plaintext,
		EncryptedKey: result.CiphertextBlob,
	}, nil
}

// DecryptMaterial decrypts the encrypted key using KMS
func (k *AWSKMSProvider) DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, material *Material) (*Material, error) {
	input := &kms.DecryptInput{
		KeyId:             aws.String(k.keyID),
		CiphertextBlob:    material.EncryptedKey,
		EncryptionContext: encryptionContext(cryptoCtx),
	}

	result, err := k.kmsClient.DecryptWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	return &Material{
		PlaintextKey: result.Plaintext,
		EncryptedKey: material.EncryptedKey,
	}, nil
}
