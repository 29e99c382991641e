package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const EnvPrefix = "TLSPROV"

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so that AutomaticEnv can see it. Keys must
// match the mapstructure tags.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("hash.algorithms", textList(d.Hash.Algorithms))
	v.SetDefault("compression.algorithms", textList(d.Compression.Algorithms))

	v.SetDefault("signing.cert_chain", d.Signing.CertChain)
	v.SetDefault("signing.key", d.Signing.Key)
	v.SetDefault("signing.ocsp", d.Signing.OCSP)
	v.SetDefault("signing.schemes", textList(d.Signing.Schemes))
	v.SetDefault("signing.monitor.enabled", d.Signing.Monitor.Enabled)
	v.SetDefault("signing.monitor.health_interval", d.Signing.Monitor.HealthInterval.String())
	v.SetDefault("signing.monitor.fail_threshold", d.Signing.Monitor.FailThreshold)
	v.SetDefault("signing.monitor.failover_timeout", d.Signing.Monitor.FailoverTimeout.String())

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
}

func textList[T fmt.Stringer](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.String())
	}
	return out
}

// decoderOption turns "30s" into durations, "sha256,sha384" into lists and
// algorithm names into their typed identifiers.
func decoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	)
}

// Load reads path (skipped when empty), applies the environment and then
// overrides, keyed by dotted config key, and validates the result.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOption()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
