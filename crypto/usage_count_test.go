package crypto

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAWSCachingMM builds a caching manager over a live KMS key. The tests
// using it only run with KMS_KEY_ID set.
func newAWSCachingMM(t *testing.T, maxUsage int) (*CachingMaterialsManager, *Cipher) {
	t.Helper()
	keyID := os.Getenv("KMS_KEY_ID")
	if keyID == "" {
		t.Skip("Skipping test: KMS_KEY_ID environment variable not set")
	}

	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	}))
	awsProvider := NewAWSKMSProvider(kms.New(sess), AWSKMSOptions{KeyID: keyID})

	cache, _ := newTestCache(t)
	cachingMM, err := NewCachingMaterialsManager(
		awsProvider,
		cache,
		CachingConfig{
			MaxCache:        MaxCacheSize,
			MaxAge:          1 * time.Hour,
			MaxMessagesUsed: maxUsage,
		},
		nil,
	)
	require.NoError(t, err, "Failed to create caching materials manager")
	return cachingMM, NewCipher(cachingMM, cache)
}

func TestUsageCount(t *testing.T) {
	maxUsage := 3
	cachingMM, _ := newAWSCachingMM(t, maxUsage)

	cryptoCtx := CryptoContext{"purpose": "usage-count-test"}
	ctx := context.Background()

	material1, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err, "Failed to get first material")
	assert.Len(t, material1.PlaintextKey, DataKeySize)
	assert.Equal(t, 1, material1.UsageCount, "Initial usage count should be 1")

	for i := 2; i <= maxUsage; i++ {
		material, err := cachingMM.GetMaterial(ctx, cryptoCtx)
		require.NoError(t, err, "Failed to get material on iteration %d", i)
		assert.Equal(t, material1.EncryptedKey, material.EncryptedKey, "Iteration %d: Should get the same material", i)
		assert.Equal(t, i, material.UsageCount, "Usage count should increment on each use")
	}

	materialNew, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err, "Failed to get new material after max usage")
	assert.NotEqual(t, material1.EncryptedKey, materialNew.EncryptedKey, "Should get a new material after max usage")
	assert.Equal(t, 1, materialNew.UsageCount, "New material usage count should be 1")
}

func TestDecryptionWithDecryptMaterial(t *testing.T) {
	maxUsage := 3
	cachingMM, cipher := newAWSCachingMM(t, maxUsage)

	cryptoCtx := CryptoContext{"purpose": "decryption-usage-count-test"}
	ctx := context.Background()

	ciphertext, encryptedKey, err := cipher.Encrypt(ctx, &EncryptInput{
		Plaintext:      []byte("Test data for decryption usage count"),
		KeyContext:     cryptoCtx,
		PayloadContext: cryptoCtx,
	})
	require.NoError(t, err, "Failed to encrypt test data")

	// Expired decryption entries are refetched, never refused
	for i := 1; i <= maxUsage*2; i++ {
		_, err := cachingMM.DecryptMaterial(ctx, cryptoCtx, &Material{EncryptedKey: encryptedKey})
		require.NoError(t, err, "Failed to decrypt material on iteration %d", i)
	}

	_, err = cipher.Decrypt(ctx, &DecryptInput{
		Ciphertext:     ciphertext,
		EncryptedKey:   encryptedKey,
		KeyContext:     cryptoCtx,
		PayloadContext: cryptoCtx,
	})
	require.NoError(t, err, "Decryption failed after multiple uses")
}
