package crypto

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
)

// GCPKMSOptions contains configuration options for GCPKMSProvider
type GCPKMSOptions struct {
	// KeyName is the fully qualified name of the GCP KMS key to use
	// Format: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	KeyName string

	// ProtectionLevel of the random source for data keys, HSM if unset
	ProtectionLevel kmspb.ProtectionLevel
}

// GCPKMSClient is the subset of the KMS client the provider calls
type GCPKMSClient interface {
	GenerateRandomBytes(ctx context.Context, req *kmspb.GenerateRandomBytesRequest, opts ...gax.CallOption) (*kmspb.GenerateRandomBytesResponse, error)
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

// GCPKMSProvider implements MaterialsManager using Google Cloud KMS. Data
// keys come from GenerateRandomBytes and are wrapped with Encrypt, the
// crypto context bound as additional authenticated data.
type GCPKMSProvider struct {
	kmsClient       GCPKMSClient
	keyName         string
	protectionLevel kmspb.ProtectionLevel
}

// NewGCPKMSProvider creates a new GCP KMS-based materials manager
func NewGCPKMSProvider(kmsClient GCPKMSClient, options GCPKMSOptions) *GCPKMSProvider {
	level := options.ProtectionLevel
	if level == kmspb.ProtectionLevel_PROTECTION_LEVEL_UNSPECIFIED {
		level = kmspb.ProtectionLevel_HSM
	}

	return &GCPKMSProvider{
		kmsClient:       kmsClient,
		keyName:         options.KeyName,
		protectionLevel: level,
	}
}

// GetMaterial generates and wraps a new data key
func (g *GCPKMSProvider) GetMaterial(ctx context.Context, cryptoCtx CryptoContext) (*Material, error) {
	randomResp, err := g.kmsClient.GenerateRandomBytes(ctx, &kmspb.GenerateRandomBytesRequest{
		Location:        extractLocationFromKeyName(g.keyName),
		LengthBytes:     DataKeySize,
		ProtectionLevel: g.protectionLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	plaintextKey := randomResp.Data

	encryptResp, err := g.kmsClient.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:                        g.keyName,
		Plaintext:                   plaintextKey,
		AdditionalAuthenticatedData: ContextToBytes(cryptoCtx),
	})
	if err != nil {
		Zero(plaintextKey)
		return nil, fmt.Errorf("failed to encrypt data key: %w", err)
	}

	return &Material{
		PlaintextKey: plaintextKey,
		EncryptedKey: encryptResp.Ciphertext,
	}, nil
}

// DecryptMaterial decrypts the encrypted key using GCP KMS
func (g *GCPKMSProvider) DecryptMaterial(ctx context.Context, cryptoCtx CryptoContext, material *Material) (*Material, error) {
	resp, err := g.kmsClient.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:                        g.keyName,
		Ciphertext:                  material.EncryptedKey,
		AdditionalAuthenticatedData: ContextToBytes(cryptoCtx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	return &Material{
		PlaintextKey: resp.Plaintext,
		EncryptedKey: material.EncryptedKey,
	}, nil
}

// extractLocationFromKeyName returns projects/{project}/locations/{location}
// from a key name, or the global default location.
func extractLocationFromKeyName(keyName string) string {
	parts := strings.Split(keyName, "/")
	var projectID, location string

	for i, part := range parts {
		if part == "projects" && i+1 < len(parts) {
			projectID = parts[i+1]
		}
		if part == "locations" && i+1 < len(parts) {
			location = parts[i+1]
		}
	}

	if projectID != "" && location != "" {
		return fmt.Sprintf("projects/%s/locations/%s", projectID, location)
	}

	return "projects/default-project/locations/global"
}
