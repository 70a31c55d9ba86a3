package codec

import (
	"go.temporal.io/sdk/converter"
	"go.uber.org/fx"

	"temporal-sa/crypto-provider/config"
	"temporal-sa/crypto-provider/metrics"
)

var Module = fx.Provide(
	newCodecFactoryProvider,
	newPayloadCodec,
)

// newPayloadCodec builds the codec for the configured key source.
func newPayloadCodec(factory EncryptionCodecFactory, configProvider config.ConfigProvider, metricsHandler *metrics.MetricsHandler) (converter.PayloadCodec, error) {
	encryptionConfig := configProvider.GetProviderConfig().Encryption
	return factory.NewEncryptionCodec(EncryptionCodecOptions{
		EncryptionConfig: encryptionConfig,
		CodecContext:     encryptionConfig.CodecContext,
		MetricsHandler:   metricsHandler,
	})
}
