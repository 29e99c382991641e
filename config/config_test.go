package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubin.dev/tlsprovider/crypto/compress"
	"rubin.dev/tlsprovider/crypto/hashes"
	"rubin.dev/tlsprovider/crypto/sign"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tlsprov.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
hash:
  algorithms: [sha384, sha512]
compression:
  algorithms: [zstd, 1]
signing:
  cert_chain: /etc/tls/chain.pem
  key: /etc/tls/key.pem
  schemes: [ed25519, "0x0403"]
  monitor:
    enabled: true
    health_interval: 2s
    fail_threshold: 5
    failover_timeout: 1m
cache:
  dir: ""
  max_entries: 8
log:
  level: debug
  pretty: true
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []hashes.HashAlgorithm{hashes.SHA384, hashes.SHA512}, cfg.Hash.Algorithms)
	assert.Equal(t, []compress.Algorithm{compress.Zstd, compress.Zlib}, cfg.Compression.Algorithms)
	assert.Equal(t, []sign.SignatureScheme{sign.ED25519, sign.ECDSA_NISTP256_SHA256}, cfg.Signing.Schemes)
	assert.Equal(t, "/etc/tls/key.pem", cfg.Signing.Key)
	assert.True(t, cfg.Signing.Monitor.Enabled)
	assert.Equal(t, sign.MonitorConfig{HealthInterval: 2 * time.Second, FailThreshold: 5, FailoverTimeout: time.Minute},
		cfg.Signing.MonitorSettings())
	assert.Empty(t, cfg.Cache.Dir)
	assert.Equal(t, 8, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestEmptyCompressionListDisablesCompression(t *testing.T) {
	cfg, err := Load(writeConfig(t, "compression:\n  algorithms: []\n"), nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Compression.Algorithms)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "hash:\n  algorithms: [sha256]\nlog:\n  level: warn\n")
	t.Setenv("TLSPROV_HASH_ALGORITHMS", "sha512,sha384")
	t.Setenv("TLSPROV_LOG_LEVEL", "error")
	t.Setenv("TLSPROV_SIGNING_MONITOR_FAILOVER_TIMEOUT", "90s")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []hashes.HashAlgorithm{hashes.SHA512, hashes.SHA384}, cfg.Hash.Algorithms)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 90*time.Second, cfg.Signing.Monitor.FailoverTimeout)
}

func TestOverridesBeatEnvironment(t *testing.T) {
	t.Setenv("TLSPROV_LOG_LEVEL", "error")
	cfg, err := Load("", map[string]any{"log.level": "trace", "compression.algorithms": "brotli"})
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.Log.Level)
	assert.Equal(t, []compress.Algorithm{compress.Brotli}, cfg.Compression.Algorithms)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown hash":        "hash:\n  algorithms: [md5]\n",
		"empty hash list":     "hash:\n  algorithms: []\n",
		"duplicate hash":      "hash:\n  algorithms: [sha256, sha256]\n",
		"unknown compression": "compression:\n  algorithms: [lz4]\n",
		"duplicate comp":      "compression:\n  algorithms: [zlib, zlib]\n",
		"unknown scheme":      "signing:\n  schemes: [\"0xfefe\"]\n",
		"key without chain":   "signing:\n  key: key.pem\n",
		"bad threshold":       "signing:\n  monitor:\n    enabled: true\n    fail_threshold: 0\n",
		"negative entries":    "cache:\n  max_entries: -1\n",
		"bad log level":       "log:\n  level: verbose\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), nil)
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestValidateNil(t *testing.T) {
	require.ErrorIs(t, Validate(nil), ErrConfigNil)
}

func TestRenderRoundTrips(t *testing.T) {
	want := DefaultConfig()
	want.Hash.Algorithms = []hashes.HashAlgorithm{hashes.SHA512}
	want.Signing.Monitor.Enabled = true
	want.Log.File = "/var/log/tlsprov.log"

	out, err := Render(want)
	require.NoError(t, err)
	assert.Contains(t, string(out), "- sha512")
	assert.Contains(t, string(out), "health_interval: 10s")
	assert.Contains(t, string(out), "- ecdsa_secp256r1_sha256")

	got, err := Load(writeConfig(t, string(out)), nil)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}
