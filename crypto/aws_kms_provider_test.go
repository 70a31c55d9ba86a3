package crypto

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockKMSClient implements kmsiface.KMSAPI for testing
type MockKMSClient struct {
	kmsiface.KMSAPI
	generateDataKeyOutput *kms.GenerateDataKeyOutput
	generateDataKeyError  error
	decryptOutput         *kms.DecryptOutput
	decryptError          error
	lastEncryptionContext map[string]*string
	lastNumberOfBytes     int64
	lastKeyId             string
}

func (m *MockKMSClient) GenerateDataKeyWithContext(ctx context.Context, input *kms.GenerateDataKeyInput, opts ...request.Option) (*kms.GenerateDataKeyOutput, error) {
	m.lastEncryptionContext = input.EncryptionContext
	m.lastNumberOfBytes = aws.Int64Value(input.NumberOfBytes)
	m.lastKeyId = aws.StringValue(input.KeyId)
	return m.generateDataKeyOutput, m.generateDataKeyError
}

func (m *MockKMSClient) DecryptWithContext(ctx context.Context, input *kms.DecryptInput, opts ...request.Option) (*kms.DecryptOutput, error) {
	m.lastEncryptionContext = input.EncryptionContext
	m.lastKeyId = aws.StringValue(input.KeyId)
	return m.decryptOutput, m.decryptError
}

func TestAWSKMSProvider_GetMaterial(t *testing.T) {
	tests := []struct {
		name              string
		context           CryptoContext
		mockOutput        *kms.GenerateDataKeyOutput
		mockError         error
		expectedPlaintext []byte
		expectedError     bool
	}{
		{
			name:    "Success",
			context: CryptoContext{"purpose": "test"},
			mockOutput: &kms.GenerateDataKeyOutput{
				Plaintext:      []byte("test-plaintext"),
				CiphertextBlob: []byte("test-ciphertext"),
			},
			expectedPlaintext: []byte("test-plaintext"),
		},
		{
			name:          "KMS Error",
			context:       CryptoContext{"purpose": "test"},
			mockError:     errors.New("KMS error"),
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKMS := &MockKMSClient{
				generateDataKeyOutput: tt.mockOutput,
				generateDataKeyError:  tt.mockError,
			}
			provider := NewAWSKMSProvider(mockKMS, AWSKMSOptions{KeyID: "test-key-id"})

			material, err := provider.GetMaterial(context.Background(), tt.context)
			assert.Equal(t, "test-key-id", mockKMS.lastKeyId)
			assert.Equal(t, int64(DataKeySize), mockKMS.lastNumberOfBytes)

			if tt.expectedError {
				assert.Error(t, err)
				assert.ErrorIs(t, err, tt.mockError)
				assert.Nil(t, material)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedPlaintext, material.PlaintextKey)
			assert.Equal(t, tt.mockOutput.CiphertextBlob, material.EncryptedKey)

			require.Contains(t, mockKMS.lastEncryptionContext, "purpose")
			assert.Equal(t, "test", *mockKMS.lastEncryptionContext["purpose"])
		})
	}
}

func TestAWSKMSProvider_DecryptMaterial(t *testing.T) {
	tests := []struct {
		name          string
		context       CryptoContext
		mockOutput    *kms.DecryptOutput
		mockError     error
		expectedError bool
	}{
		{
			name:    "Success",
			context: CryptoContext{"purpose": "test", "tenant": "a"},
			mockOutput: &kms.DecryptOutput{
				Plaintext: []byte("decrypted-plaintext"),
			},
		},
		{
			name:          "KMS Error",
			context:       CryptoContext{"purpose": "test"},
			mockError:     errors.New("access denied"),
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockKMS := &MockKMSClient{
				decryptOutput: tt.mockOutput,
				decryptError:  tt.mockError,
			}
			provider := NewAWSKMSProvider(mockKMS, AWSKMSOptions{KeyID: "test-key-id"})

			input := &Material{EncryptedKey: []byte("wrapped")}
			material, err := provider.DecryptMaterial(context.Background(), tt.context, input)

			if tt.expectedError {
				assert.ErrorIs(t, err, tt.mockError)
				assert.Contains(t, err.Error(), "failed to decrypt key")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.mockOutput.Plaintext, material.PlaintextKey)
			assert.Equal(t, input.EncryptedKey, material.EncryptedKey)
			assert.Len(t, mockKMS.lastEncryptionContext, len(tt.context))
			for k, v := range tt.context {
				assert.Equal(t, v, aws.StringValue(mockKMS.lastEncryptionContext[k]))
			}
		})
	}
}
