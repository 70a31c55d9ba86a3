package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	ConfigPathFlag    = "config"
	DefaultConfigPath = "config.yaml"
	LogLevelFlag      = "level"

	DefaultLogLevel    = "info"
	DefaultMetricsHost = "0.0.0.0"
	DefaultServerHost  = "127.0.0.1"
	DefaultServerPort  = 8081

	KeySourceLocal  = "local"
	KeySourceAWSKMS = "aws-kms"
	KeySourceGCPKMS = "gcp-kms"
)

type (
	ConfigProvider interface {
		GetProviderConfig() ProviderConfig
	}

	ProviderConfig struct {
		Engine     EngineConfig     `yaml:"engine"`
		Encryption EncryptionConfig `yaml:"encryption"`
		Server     ServerConfig     `yaml:"server"`
		Metrics    MetricsConfig    `yaml:"metrics"`
		Log        LogConfig        `yaml:"log"`
	}

	EngineConfig struct {
		// ReusableHash is nil when unset, which means reusable hash
		// objects are used.
		ReusableHash *bool `yaml:"reusable_hash,omitempty"`
	}

	EncryptionConfig struct {
		Type         string                 `yaml:"type"`
		Config       map[string]interface{} `yaml:"config"`
		CodecContext map[string]string      `yaml:"codec_context,omitempty"`
		Caching      CachingConfig          `yaml:"caching"`
	}

	CachingConfig struct {
		MaxCache int    `yaml:"max_cache,omitempty"`
		MaxAge   string `yaml:"max_age,omitempty"`
		MaxUsage int    `yaml:"max_usage,omitempty"`
	}

	// ServerConfig is where the codec server listens.
	ServerConfig struct {
		Host string `yaml:"host,omitempty"`
		Port int    `yaml:"port,omitempty"`
	}

	MetricsConfig struct {
		Host string `yaml:"host,omitempty"`
		// Port 0 disables the Prometheus endpoint.
		Port int `yaml:"port"`
	}

	LogConfig struct {
		Level string `yaml:"level,omitempty"`
	}

	cliConfigProvider struct {
		ctx            *cli.Context
		providerConfig ProviderConfig
	}
)

func newConfigProvider(ctx *cli.Context) (ConfigProvider, error) {
	path := ctx.String(ConfigPathFlag)

	var providerConfig ProviderConfig
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		var err error
		if providerConfig, err = LoadConfig(path); err != nil {
			return nil, err
		}
	case errors.Is(statErr, os.ErrNotExist) && !ctx.IsSet(ConfigPathFlag):
		// running without a config file is fine unless one was asked for
		providerConfig = DefaultConfig()
	default:
		return nil, fmt.Errorf("failed to read config file: %w", statErr)
	}

	if ctx.IsSet(LogLevelFlag) {
		providerConfig.Log.Level = ctx.String(LogLevelFlag)
	}

	return &cliConfigProvider{
		ctx:            ctx,
		providerConfig: providerConfig,
	}, nil
}

func (c *cliConfigProvider) GetProviderConfig() ProviderConfig {
	return c.providerConfig
}

// NewStaticConfigProvider wraps an already loaded configuration.
func NewStaticConfigProvider(cfg ProviderConfig) ConfigProvider {
	return &cliConfigProvider{providerConfig: cfg}
}

// DefaultConfig is used when no config file exists.
func DefaultConfig() ProviderConfig {
	var cfg ProviderConfig
	cfg.applyDefaults()
	return cfg
}

func LoadConfig(configFilePath string) (ProviderConfig, error) {
	var config ProviderConfig

	configFile, err := os.ReadFile(configFilePath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(configFile, &config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	config.applyDefaults()

	if err = config.Validate(); err != nil {
		return config, fmt.Errorf("failed to validate config: %w", err)
	}

	return config, nil
}

func (c *ProviderConfig) applyDefaults() {
	if c.Encryption.Type == "" {
		c.Encryption.Type = KeySourceLocal
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Metrics.Host == "" {
		c.Metrics.Host = DefaultMetricsHost
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// UseReusableHash reports whether hash providers should ask the engine for
// reusable hash objects.
func (e EngineConfig) UseReusableHash() bool {
	return e.ReusableHash == nil || *e.ReusableHash
}

func (c ProviderConfig) Validate() error {
	var errs []error
	errs = append(errs, c.Encryption.Validate()...)
	errs = append(errs, c.Server.Validate()...)
	errs = append(errs, c.Metrics.Validate()...)
	errs = append(errs, c.Log.Validate()...)
	return errors.Join(errs...)
}

func (c EncryptionConfig) Validate() []error {
	var errs []error

	switch c.Type {
	case KeySourceLocal:
		// master key comes from the environment at startup
	case KeySourceAWSKMS:
		if _, err := c.String(AWSKeyIDConfigKey); err != nil {
			errs = append(errs, err)
		}
	case KeySourceGCPKMS:
		if _, err := c.String(GCPKeyNameConfigKey); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported encryption type: %s", c.Type))
	}

	return append(errs, c.Caching.Validate()...)
}

// String returns a string value from the key source config.
func (c EncryptionConfig) String(key string) (string, error) {
	raw, ok := c.Config[key]
	if !ok {
		return "", fmt.Errorf("%s not found in %s encryption config", key, c.Type)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s must be a non-empty string in %s encryption config", key, c.Type)
	}
	return value, nil
}

func (c CachingConfig) Validate() []error {
	var errs []error
	if c.MaxCache < 0 {
		errs = append(errs, fmt.Errorf("encryption max_cache must be >= 0: %d", c.MaxCache))
	}
	if c.MaxUsage < 0 {
		errs = append(errs, fmt.Errorf("encryption max_usage must be >= 0: %d", c.MaxUsage))
	}
	if c.MaxAge != "" {
		if d, err := time.ParseDuration(c.MaxAge); err != nil {
			errs = append(errs, fmt.Errorf("encryption max_age is not a duration: %s", c.MaxAge))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("encryption max_age must be >= 0: %s", c.MaxAge))
		}
	}
	return errs
}

// MaxAgeDuration returns the parsed max_age, zero when unset.
func (c CachingConfig) MaxAgeDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxAge)
	return d
}

func (c ServerConfig) Validate() []error {
	if c.Port < 0 || c.Port > 65535 {
		return []error{fmt.Errorf("invalid codec server port: %d", c.Port)}
	}
	return nil
}

func (c MetricsConfig) Validate() []error {
	if c.Port < 0 || c.Port > 65535 {
		return []error{fmt.Errorf("invalid metrics server port: %d", c.Port)}
	}
	return nil
}

func (c LogConfig) Validate() []error {
	switch c.Level {
	case "", "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
		return nil
	}
	return []error{fmt.Errorf("invalid log level: %s", c.Level)}
}
