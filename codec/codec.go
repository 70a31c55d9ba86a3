package codec

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	gcpKms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsKms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"go.opentelemetry.io/otel/attribute"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/config"
	"temporal-sa/crypto-provider/crypto"
	"temporal-sa/crypto-provider/metrics"
)

//
//	This could be extended to include codecs of other types (e.g. compression), but
//	is currently focused on encryption specifically.
//

// DefaultLocalKeyID names the local key source in payload metadata unless
// the config sets key-id.
const DefaultLocalKeyID = "local"

type (
	EncryptionCodecFactory interface {
		NewEncryptionCodec(args EncryptionCodecOptions) (converter.PayloadCodec, error)
	}

	EncryptionCodecOptions struct {
		EncryptionConfig config.EncryptionConfig
		CodecContext     map[string]string
		MetricsHandler   *metrics.MetricsHandler
	}

	EncryptionCodecConstructor func(args EncryptionCodecOptions) (converter.PayloadCodec, error)

	encryptionCodecFactory struct {
		providers map[string]EncryptionCodecConstructor
		cache     *algcache.Cache
		logger    *zap.Logger

		// swapped out in tests
		newAWSClient func(region string) (kmsiface.KMSAPI, error)
		newGCPClient func(ctx context.Context) (crypto.GCPKMSClient, error)
	}
)

func newCodecFactoryProvider(cache *algcache.Cache, logger *zap.Logger) EncryptionCodecFactory {
	return newEncryptionCodecFactory(cache, logger)
}

func newEncryptionCodecFactory(cache *algcache.Cache, logger *zap.Logger) *encryptionCodecFactory {
	cf := &encryptionCodecFactory{
		providers: make(map[string]EncryptionCodecConstructor),
		cache:     cache,
		logger:    logger,
		newAWSClient: func(region string) (kmsiface.KMSAPI, error) {
			sess, err := session.NewSession(&aws.Config{
				Region: aws.String(region),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create aws session: %w", err)
			}
			return awsKms.New(sess), nil
		},
		newGCPClient: func(ctx context.Context) (crypto.GCPKMSClient, error) {
			return gcpKms.NewKeyManagementClient(ctx)
		},
	}

	cf.providers[config.KeySourceLocal] = cf.newLocalCodec
	cf.providers[config.KeySourceAWSKMS] = cf.newAWSCodec
	cf.providers[config.KeySourceGCPKMS] = cf.newGCPCodec

	return cf
}

func (e *encryptionCodecFactory) NewEncryptionCodec(args EncryptionCodecOptions) (converter.PayloadCodec, error) {
	encryptionCodec, ok := e.providers[args.EncryptionConfig.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported encryption type %s", args.EncryptionConfig.Type)
	}

	return encryptionCodec(args)
}

func (e *encryptionCodecFactory) newLocalCodec(args EncryptionCodecOptions) (converter.PayloadCodec, error) {
	envVar := config.LocalMasterKeyEnvVar
	if _, ok := args.EncryptionConfig.Config[config.MasterKeyEnvConfigKey]; ok {
		var err error
		if envVar, err = args.EncryptionConfig.String(config.MasterKeyEnvConfigKey); err != nil {
			return nil, err
		}
	}

	keyID := DefaultLocalKeyID
	if _, ok := args.EncryptionConfig.Config[config.LocalKeyIDConfigKey]; ok {
		var err error
		if keyID, err = args.EncryptionConfig.String(config.LocalKeyIDConfigKey); err != nil {
			return nil, err
		}
	}

	masterKey, err := hex.DecodeString(strings.TrimSpace(os.Getenv(envVar)))
	if err != nil {
		return nil, fmt.Errorf("master key in %s is not hex: %w", envVar, err)
	}
	defer crypto.Zero(masterKey)

	localMaterialsManager, err := crypto.NewLocalMaterialsManager(e.cache, masterKey)
	if err != nil {
		return nil, fmt.Errorf("invalid master key in %s: %w", envVar, err)
	}

	return e.withCaching(localMaterialsManager, keyID, args)
}

func (e *encryptionCodecFactory) newAWSCodec(args EncryptionCodecOptions) (converter.PayloadCodec, error) {
	keyId, err := args.EncryptionConfig.String(config.AWSKeyIDConfigKey)
	if err != nil {
		return nil, err
	}

	region := os.Getenv(config.AwsRegionEnvVar)
	if region == "" {
		region = config.DefaultAwsRegion
	}
	kmsClient, err := e.newAWSClient(region)
	if err != nil {
		return nil, err
	}

	awsMaterialsManager := crypto.NewAWSKMSProvider(kmsClient, crypto.AWSKMSOptions{
		KeyID: keyId,
	})

	return e.withCaching(awsMaterialsManager, keyId, args)
}

func (e *encryptionCodecFactory) newGCPCodec(args EncryptionCodecOptions) (converter.PayloadCodec, error) {
	keyName, err := args.EncryptionConfig.String(config.GCPKeyNameConfigKey)
	if err != nil {
		return nil, err
	}

	options := crypto.GCPKMSOptions{KeyName: keyName}
	if _, ok := args.EncryptionConfig.Config[config.GCPProtectionConfigKey]; ok {
		raw, err := args.EncryptionConfig.String(config.GCPProtectionConfigKey)
		if err != nil {
			return nil, err
		}
		level, ok := kmspb.ProtectionLevel_value[strings.ToUpper(raw)]
		if !ok {
			return nil, fmt.Errorf("unknown gcp protection level %s", raw)
		}
		options.ProtectionLevel = kmspb.ProtectionLevel(level)
	}

	kmsClient, err := e.newGCPClient(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to create gcp kms client: %w", err)
	}

	gcpMaterialsManager := crypto.NewGCPKMSProvider(kmsClient, options)

	return e.withCaching(gcpMaterialsManager, keyName, args)
}

func (e *encryptionCodecFactory) withCaching(mm crypto.MaterialsManager, keyID string, args EncryptionCodecOptions) (converter.PayloadCodec, error) {
	var handler client.MetricsHandler = client.MetricsNopHandler
	if args.MetricsHandler != nil {
		args.MetricsHandler.AddAttributes(attribute.String("encryption_key", keyID))
		handler = args.MetricsHandler
	}

	caching := args.EncryptionConfig.Caching
	e.logger.Info("encryption codec ready",
		zap.String("type", args.EncryptionConfig.Type),
		zap.String("encryption_key", keyID),
	)

	return NewEncryptionCodecWithCaching(
		mm,
		e.cache,
		args.CodecContext,
		keyID,
		handler,
		crypto.CachingConfig{
			MaxCache:        caching.MaxCache,
			MaxAge:          caching.MaxAgeDuration(),
			MaxMessagesUsed: caching.MaxUsage,
		},
	)
}
