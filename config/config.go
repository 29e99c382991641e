// Package config loads the provider configuration. Sources, highest
// precedence first: explicit overrides (CLI flags), TLSPROV_* environment
// variables, the YAML config file, built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rubin.dev/tlsprovider/crypto/compress"
	"rubin.dev/tlsprovider/crypto/hashes"
	"rubin.dev/tlsprovider/crypto/sign"
)

type Config struct {
	Hash        HashConfig        `yaml:"hash" mapstructure:"hash"`
	Compression CompressionConfig `yaml:"compression" mapstructure:"compression"`
	Signing     SigningConfig     `yaml:"signing" mapstructure:"signing"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

type HashConfig struct {
	// Algorithms enabled for transcript hashing, in preference order.
	Algorithms []hashes.HashAlgorithm `yaml:"algorithms" mapstructure:"algorithms"`
}

type CompressionConfig struct {
	// Algorithms enabled for certificate compression, in preference order.
	// Empty disables compression.
	Algorithms []compress.Algorithm `yaml:"algorithms" mapstructure:"algorithms"`
}

type SigningConfig struct {
	CertChain string                 `yaml:"cert_chain" mapstructure:"cert_chain"`
	Key       string                 `yaml:"key" mapstructure:"key"`
	OCSP      string                 `yaml:"ocsp" mapstructure:"ocsp"`
	Schemes   []sign.SignatureScheme `yaml:"schemes" mapstructure:"schemes"`
	Monitor   MonitorConfig          `yaml:"monitor" mapstructure:"monitor"`
}

type MonitorConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	HealthInterval  time.Duration `yaml:"health_interval" mapstructure:"health_interval"`
	FailThreshold   int           `yaml:"fail_threshold" mapstructure:"fail_threshold"`
	FailoverTimeout time.Duration `yaml:"failover_timeout" mapstructure:"failover_timeout"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir        string `yaml:"dir" mapstructure:"dir"` // empty keeps the cache in memory only
	MaxEntries int    `yaml:"max_entries" mapstructure:"max_entries"`
}

type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Pretty     bool   `yaml:"pretty" mapstructure:"pretty"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tlsprov"
	}
	return filepath.Join(home, ".tlsprov")
}

func DefaultConfig() Config {
	monitor := sign.DefaultMonitorConfig()
	return Config{
		Hash: HashConfig{
			Algorithms: []hashes.HashAlgorithm{hashes.SHA256, hashes.SHA384},
		},
		Compression: CompressionConfig{
			Algorithms: compress.BuiltinAlgorithms(),
		},
		Signing: SigningConfig{
			Schemes: []sign.SignatureScheme{
				sign.ECDSA_NISTP256_SHA256,
				sign.ED25519,
				sign.RSA_PSS_SHA256,
				sign.ECDSA_NISTP384_SHA384,
				sign.RSA_PSS_SHA384,
				sign.RSA_PSS_SHA512,
				sign.RSA_PKCS1_SHA256,
				sign.RSA_PKCS1_SHA384,
				sign.RSA_PKCS1_SHA512,
			},
			Monitor: MonitorConfig{
				HealthInterval:  monitor.HealthInterval,
				FailThreshold:   monitor.FailThreshold,
				FailoverTimeout: monitor.FailoverTimeout,
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        filepath.Join(DefaultDataDir(), "cache"),
			MaxEntries: 64,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// MonitorSettings converts the monitor section for sign.NewKeyMonitor.
func (c SigningConfig) MonitorSettings() sign.MonitorConfig {
	return sign.MonitorConfig{
		HealthInterval:  c.Monitor.HealthInterval,
		FailThreshold:   c.Monitor.FailThreshold,
		FailoverTimeout: c.Monitor.FailoverTimeout,
	}
}

// Render returns cfg as YAML, in the same shape Load reads.
func Render(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
