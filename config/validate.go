package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"rubin.dev/tlsprovider/crypto/compress"
	"rubin.dev/tlsprovider/crypto/hashes"
	"rubin.dev/tlsprovider/crypto/sign"
)

var ErrConfigNil = errors.New("config is nil")

var allowedLogLevels = map[string]struct{}{
	"trace": {},
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate reports the first invalid or inconsistent value in cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}
	if err := validateHash(&cfg.Hash); err != nil {
		return err
	}
	if err := validateCompression(&cfg.Compression); err != nil {
		return err
	}
	if err := validateSigning(&cfg.Signing); err != nil {
		return err
	}
	if err := validateCache(&cfg.Cache); err != nil {
		return err
	}
	return validateLog(&cfg.Log)
}

func validateHash(cfg *HashConfig) error {
	if len(cfg.Algorithms) == 0 {
		return errors.New("hash.algorithms must not be empty")
	}
	for i, alg := range cfg.Algorithms {
		if _, err := hashes.Lookup(alg); err != nil {
			return fmt.Errorf("hash.algorithms: %w", err)
		}
		if slices.Contains(cfg.Algorithms[:i], alg) {
			return fmt.Errorf("hash.algorithms: %s listed twice", alg)
		}
	}
	return nil
}

func validateCompression(cfg *CompressionConfig) error {
	if _, err := compress.NewRegistry(cfg.Algorithms...); err != nil {
		return fmt.Errorf("compression.algorithms: %w", err)
	}
	return nil
}

func validateSigning(cfg *SigningConfig) error {
	if (cfg.CertChain == "") != (cfg.Key == "") {
		return errors.New("signing.cert_chain and signing.key must be set together")
	}
	if cfg.OCSP != "" && cfg.CertChain == "" {
		return errors.New("signing.ocsp requires signing.cert_chain")
	}
	if len(cfg.Schemes) == 0 {
		return errors.New("signing.schemes must not be empty")
	}
	for _, s := range cfg.Schemes {
		if s.Algorithm() == sign.AlgAnonymous {
			return fmt.Errorf("signing.schemes: unknown scheme %s", s)
		}
	}
	m := cfg.Monitor
	if !m.Enabled {
		return nil
	}
	if m.HealthInterval <= 0 {
		return fmt.Errorf("signing.monitor.health_interval must be positive, got %s", m.HealthInterval)
	}
	if m.FailThreshold < 1 {
		return fmt.Errorf("signing.monitor.fail_threshold must be >= 1, got %d", m.FailThreshold)
	}
	if m.FailoverTimeout < 0 {
		return fmt.Errorf("signing.monitor.failover_timeout must not be negative, got %s", m.FailoverTimeout)
	}
	return nil
}

func validateCache(cfg *CacheConfig) error {
	if cfg.MaxEntries < 0 {
		return errors.New("cache.max_entries must be >= 0")
	}
	if cfg.MaxEntries > 1<<16 {
		return errors.New("cache.max_entries must be <= 65536")
	}
	return nil
}

func validateLog(cfg *LogConfig) error {
	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if _, ok := allowedLogLevels[level]; !ok {
		return fmt.Errorf("invalid log.level %q", cfg.Level)
	}
	if cfg.File != "" && cfg.MaxSizeMB <= 0 {
		return errors.New("log.max_size_mb must be > 0 when log.file is set")
	}
	return nil
}
