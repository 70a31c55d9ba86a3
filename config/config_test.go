package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			configYAML: `
engine:
  reusable_hash: false
encryption:
  type: aws-kms
  config:
    key-id: "arn:aws:kms:us-west-2:123456789012:key/test"
  codec_context:
    namespace: "test.namespace"
  caching:
    max_cache: 100
    max_age: "10m"
    max_usage: 100
metrics:
  port: 9090
log:
  level: debug
`,
			expectError: false,
		},
		{
			name: "invalid yaml",
			configYAML: `
metrics:
  port: 9090
invalid_yaml: [
`,
			expectError: true,
			errorMsg:    "failed to unmarshal config file",
		},
		{
			name: "validation failure - invalid port",
			configYAML: `
metrics:
  port: 70000
`,
			expectError: true,
			errorMsg:    "failed to validate config",
		},
		{
			name: "validation failure - missing kms key",
			configYAML: `
encryption:
  type: gcp-kms
`,
			expectError: true,
			errorMsg:    "key-name not found in gcp-kms encryption config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create temporary config file
			tmpFile, err := os.CreateTemp("", "config-*.yaml")
			require.NoError(t, err)
			defer os.Remove(tmpFile.Name())

			_, err = tmpFile.WriteString(tt.configYAML)
			require.NoError(t, err)
			tmpFile.Close()

			// Test LoadConfig
			config, err := LoadConfig(tmpFile.Name())

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, config)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  port: 0\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Engine.UseReusableHash())
	assert.Equal(t, KeySourceLocal, cfg.Encryption.Type)
	assert.Equal(t, DefaultMetricsHost, cfg.Metrics.Host)
	assert.Equal(t, DefaultServerHost, cfg.Server.Host)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Zero(t, cfg.Metrics.Port)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestEngineConfig_UseReusableHash(t *testing.T) {
	disabled, enabled := false, true

	assert.True(t, EngineConfig{}.UseReusableHash())
	assert.True(t, EngineConfig{ReusableHash: &enabled}.UseReusableHash())
	assert.False(t, EngineConfig{ReusableHash: &disabled}.UseReusableHash())
}

func TestProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ProviderConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "invalid metrics port - negative",
			config: ProviderConfig{
				Encryption: EncryptionConfig{Type: KeySourceLocal},
				Metrics:    MetricsConfig{Port: -1},
			},
			wantErr: true,
			errMsg:  "invalid metrics server port: -1",
		},
		{
			name: "invalid codec server port",
			config: ProviderConfig{
				Encryption: EncryptionConfig{Type: KeySourceLocal},
				Server:     ServerConfig{Port: 65536},
			},
			wantErr: true,
			errMsg:  "invalid codec server port: 65536",
		},
		{
			name: "negative encryption max_cache",
			config: ProviderConfig{
				Encryption: EncryptionConfig{
					Type:    KeySourceLocal,
					Caching: CachingConfig{MaxCache: -1},
				},
			},
			wantErr: true,
			errMsg:  "encryption max_cache must be >= 0: -1",
		},
		{
			name: "unknown encryption type",
			config: ProviderConfig{
				Encryption: EncryptionConfig{Type: "vault"},
			},
			wantErr: true,
			errMsg:  "unsupported encryption type: vault",
		},
		{
			name: "errors are collected",
			config: ProviderConfig{
				Encryption: EncryptionConfig{Type: KeySourceLocal},
				Metrics:    MetricsConfig{Port: 70000},
				Log:        LogConfig{Level: "verbose"},
			},
			wantErr: true,
			errMsg:  "invalid metrics server port: 70000\ninvalid log level: verbose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncryptionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  EncryptionConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "local needs no key config",
			config:  EncryptionConfig{Type: KeySourceLocal},
			wantErr: false,
		},
		{
			name: "aws with key id",
			config: EncryptionConfig{
				Type:   KeySourceAWSKMS,
				Config: map[string]interface{}{AWSKeyIDConfigKey: "alias/test"},
			},
			wantErr: false,
		},
		{
			name:    "aws without key id",
			config:  EncryptionConfig{Type: KeySourceAWSKMS},
			wantErr: true,
			errMsg:  "key-id not found in aws-kms encryption config",
		},
		{
			name: "gcp key name is not a string",
			config: EncryptionConfig{
				Type:   KeySourceGCPKMS,
				Config: map[string]interface{}{GCPKeyNameConfigKey: 42},
			},
			wantErr: true,
			errMsg:  "key-name must be a non-empty string in gcp-kms encryption config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.config.Validate()

			if tt.wantErr {
				assert.NotEmpty(t, errs)
				if tt.errMsg != "" {
					assert.Contains(t, errs[0].Error(), tt.errMsg)
				}
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestCachingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  CachingConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  CachingConfig{MaxCache: 100, MaxAge: "5m", MaxUsage: 50},
			wantErr: false,
		},
		{
			name:    "zero values are valid",
			config:  CachingConfig{},
			wantErr: false,
		},
		{
			name:    "negative max_usage",
			config:  CachingConfig{MaxCache: 100, MaxUsage: -5},
			wantErr: true,
			errMsg:  "encryption max_usage must be >= 0: -5",
		},
		{
			name:    "unparseable max_age",
			config:  CachingConfig{MaxAge: "soon"},
			wantErr: true,
			errMsg:  "encryption max_age is not a duration: soon",
		},
		{
			name:    "negative max_age",
			config:  CachingConfig{MaxAge: "-1m"},
			wantErr: true,
			errMsg:  "encryption max_age must be >= 0: -1m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.config.Validate()

			if tt.wantErr {
				assert.NotEmpty(t, errs)
				if tt.errMsg != "" {
					assert.Contains(t, errs[0].Error(), tt.errMsg)
				}
			} else {
				assert.Empty(t, errs)
			}
		})
	}

	assert.Equal(t, 5*time.Minute, CachingConfig{MaxAge: "5m"}.MaxAgeDuration())
	assert.Zero(t, CachingConfig{}.MaxAgeDuration())
}

func TestMetricsConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  MetricsConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid port",
			config:  MetricsConfig{Port: 9090},
			wantErr: false,
		},
		{
			name:    "disabled",
			config:  MetricsConfig{Port: 0},
			wantErr: false,
		},
		{
			name:    "port too high",
			config:  MetricsConfig{Port: 70000},
			wantErr: true,
			errMsg:  "invalid metrics server port: 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.config.Validate()

			if tt.wantErr {
				assert.NotEmpty(t, errs)
				if tt.errMsg != "" {
					assert.Contains(t, errs[0].Error(), tt.errMsg)
				}
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func newTestCLIContext(t *testing.T, defaultPath string, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String(ConfigPathFlag, defaultPath, "")
	set.String(LogLevelFlag, "", "")
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestNewConfigProvider(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")

	t.Run("defaults without a config file", func(t *testing.T) {
		provider, err := newConfigProvider(newTestCLIContext(t, missing))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), provider.GetProviderConfig())
	})

	t.Run("explicit missing file fails", func(t *testing.T) {
		_, err := newConfigProvider(newTestCLIContext(t, missing, "--config", missing))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("loads file and applies level flag", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("metrics:\n  port: 9464\nlog:\n  level: info\n"), 0o600))

		provider, err := newConfigProvider(newTestCLIContext(t, missing, "--config", path, "--level", "debug"))
		require.NoError(t, err)
		cfg := provider.GetProviderConfig()
		assert.Equal(t, 9464, cfg.Metrics.Port)
		assert.Equal(t, "debug", cfg.Log.Level)
	})
}
