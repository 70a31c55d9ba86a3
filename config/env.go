package config

const (
	AwsRegionEnvVar  = "AWS_REGION"
	DefaultAwsRegion = "us-west-2"

	// LocalMasterKeyEnvVar holds the hex encoded 64-byte master key of the
	// local key source unless the config names another variable.
	LocalMasterKeyEnvVar = "CRYPTO_PROVIDER_MASTER_KEY"

	// keys of EncryptionConfig.Config
	AWSKeyIDConfigKey      = "key-id"
	GCPKeyNameConfigKey    = "key-name"
	GCPProtectionConfigKey = "protection-level"
	MasterKeyEnvConfigKey  = "master-key-env"
	LocalKeyIDConfigKey    = "key-id"
)
