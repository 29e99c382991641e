package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"rubin.dev/tlsprovider/config"
)

type result struct {
	code   int
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func runCLI(t *testing.T, stdin []byte, args ...string) *result {
	t.Helper()
	t.Setenv("TLSPROV_CONFIG", "")
	r := &result{}
	base := []string{"--cache-dir", t.TempDir()}
	r.code = run(context.Background(), append(base, args...), bytes.NewReader(stdin), &r.stdout, &r.stderr)
	return r
}

func writeIdentity(t *testing.T) (chainPath, keyPath string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "cli.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)

	dir := t.TempDir()
	chainPath = filepath.Join(dir, "chain.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(chainPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return chainPath, keyPath
}

func TestHashStdin(t *testing.T) {
	r := runCLI(t, []byte("abc"), "hash")
	require.Equal(t, 0, r.code, r.stderr.String())
	sum := sha256.Sum256([]byte("abc"))
	assert.Equal(t, hex.EncodeToString(sum[:])+"\n", r.stdout.String())
}

func TestHashForkMatchesFinish(t *testing.T) {
	r := runCLI(t, []byte("transcript"), "hash", "--alg", "sha384", "--fork")
	require.Equal(t, 0, r.code, r.stderr.String())
	lines := strings.Split(strings.TrimSpace(r.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.TrimSuffix(lines[0], "  fork"), lines[1])
	assert.Len(t, lines[1], 96)
}

func TestHashHonorsEnabledAlgorithms(t *testing.T) {
	r := runCLI(t, []byte("abc"), "hash", "--alg", "sha512")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr.String(), "not enabled")

	cfgPath := filepath.Join(t.TempDir(), "tlsprov.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("hash:\n  algorithms: [sha512]\n"), 0o600))
	ok := runCLI(t, []byte("abc"), "--config", cfgPath, "hash", "--alg", "sha512")
	require.Equal(t, 0, ok.code, ok.stderr.String())
	assert.Len(t, strings.TrimSpace(ok.stdout.String()), 128)
}

func TestHashUnknownAlgorithmIsUsageError(t *testing.T) {
	r := runCLI(t, nil, "hash", "--alg", "md5")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr.String(), "error:")
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	msg := bytes.Repeat([]byte("certificate entry "), 64)
	for _, alg := range []string{"zlib", "brotli", "zstd"} {
		for _, level := range []string{"interactive", "amortized"} {
			c := runCLI(t, msg, "compress", "--alg", alg, "--level", level)
			require.Equal(t, 0, c.code, c.stderr.String())
			assert.Less(t, c.stdout.Len(), len(msg))

			d := runCLI(t, c.stdout.Bytes(), "decompress", "--alg", alg, "--length", "1152")
			require.Equal(t, 0, d.code, d.stderr.String())
			assert.Equal(t, msg, d.stdout.Bytes())

			bad := runCLI(t, c.stdout.Bytes(), "decompress", "--alg", alg, "--length", "1151")
			assert.Equal(t, 1, bad.code)
		}
	}
}

func TestDecompressRequiresLength(t *testing.T) {
	r := runCLI(t, []byte("x"), "decompress")
	assert.Equal(t, 2, r.code)
}

func TestSignNegotiatesOfferedScheme(t *testing.T) {
	chain, key := writeIdentity(t)
	r := runCLI(t, []byte("to be signed"), "sign", "--chain", chain, "--key", key,
		"--scheme", "ed25519,ecdsa_secp256r1_sha256")
	require.Equal(t, 0, r.code, r.stderr.String())
	fields := strings.Fields(r.stdout.String())
	require.Len(t, fields, 2)
	assert.Equal(t, "ecdsa_secp256r1_sha256", fields[0])
	_, err := hex.DecodeString(fields[1])
	require.NoError(t, err)

	none := runCLI(t, []byte("x"), "sign", "--chain", chain, "--key", key, "--scheme", "ed25519")
	assert.Equal(t, 1, none.code)
}

func TestSignWithoutIdentity(t *testing.T) {
	r := runCLI(t, []byte("x"), "sign")
	assert.Equal(t, 2, r.code)
	assert.Contains(t, r.stderr.String(), "no signing identity")
}

func TestSelftestPasses(t *testing.T) {
	chain, key := writeIdentity(t)
	cfgPath := filepath.Join(t.TempDir(), "tlsprov.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"signing:\n  cert_chain: "+chain+"\n  key: "+key+"\n"), 0o600))

	r := runCLI(t, nil, "--config", cfgPath, "selftest")
	require.Equal(t, 0, r.code, r.stderr.String())
	out := r.stdout.String()
	for _, name := range []string{"hash/sha256", "hash/sha384", "compress/zlib", "compress/brotli", "compress/zstd", "sign/ecdsa"} {
		assert.Contains(t, out, "PASS "+name)
	}
	assert.NotContains(t, out, "FAIL")
}

func TestConfigRendersEffectiveSettings(t *testing.T) {
	r := runCLI(t, nil, "--log-level", "debug", "--no-cache", "config")
	require.Equal(t, 0, r.code, r.stderr.String())

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(r.stdout.Bytes(), &cfg))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Cache.Enabled)
}

func TestInvalidConfigExitsTwo(t *testing.T) {
	r := runCLI(t, nil, "--log-level", "loud", "config")
	assert.Equal(t, 2, r.code)

	missing := runCLI(t, nil, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "config")
	assert.Equal(t, 2, missing.code)
}
