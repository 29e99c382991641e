package conformance

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubin.dev/tlsprovider/crypto/compress"
	"rubin.dev/tlsprovider/crypto/hashes"
	"rubin.dev/tlsprovider/crypto/sign"
)

func TestBuiltinCompressionBackends(t *testing.T) {
	for _, alg := range compress.BuiltinAlgorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			b, err := compress.Lookup(alg)
			require.NoError(t, err)
			require.NoError(t, CheckCompression(b.Compressor, b.Decompressor))
		})
	}
}

func TestCheckCompressionRejectsMismatchedPair(t *testing.T) {
	err := CheckCompression(compress.ZlibCompressor, compress.BrotliDecompressor)
	require.Error(t, err)
}

// sloppyDecompressor zero-pads short output instead of failing.
type sloppyDecompressor struct{ compress.Decompressor }

func (s sloppyDecompressor) Decompress(input, output []byte) error {
	buf := make([]byte, len(output))
	for n := len(output); n >= 0; n-- {
		if s.Decompressor.Decompress(input, buf[:n]) == nil {
			copy(output, buf[:n])
			clear(output[n:])
			return nil
		}
	}
	return compress.ErrDecompressionFailed
}

func TestCheckCompressionCatchesLengthLeniency(t *testing.T) {
	err := CheckCompression(compress.ZlibCompressor, sloppyDecompressor{compress.ZlibDecompressor})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "into 2049 succeeded")
}

func TestBuiltinHashProviders(t *testing.T) {
	for _, alg := range []hashes.HashAlgorithm{hashes.SHA256, hashes.SHA384, hashes.SHA512} {
		p, err := hashes.Lookup(alg)
		require.NoError(t, err)
		require.NoError(t, CheckHash(p), alg.String())
	}

	replay := hashes.NewProvider(hashes.SHA256, sha256.Size, func() hash.Hash {
		return struct{ hash.Hash }{sha256.New()}
	})
	require.NoError(t, CheckHash(replay))
}

// aliasedProvider shares one context between forks.
type aliasedProvider struct{ hashes.Provider }

func (a aliasedProvider) Start() hashes.Context {
	return aliasedContext{a.Provider.Start()}
}

type aliasedContext struct{ hashes.Context }

func (c aliasedContext) Fork() hashes.Context { return c }

func TestCheckHashCatchesSharedForks(t *testing.T) {
	err := CheckHash(aliasedProvider{hashes.SHA256Provider()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fork observed updates")
}

func signingKeys(t *testing.T) map[string]sign.SigningKey {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	out := map[string]sign.SigningKey{}
	for name, k := range map[string]crypto.Signer{"rsa": rsaKey, "ecdsa": ecKey, "ed25519": edKey} {
		sk, err := sign.NewSigningKey(k)
		require.NoError(t, err)
		out[name] = sk
	}
	return out
}

func TestBuiltinSigningKeys(t *testing.T) {
	offers := [][]sign.SignatureScheme{
		{sign.RSA_PKCS1_SHA256, sign.RSA_PSS_SHA256, sign.ECDSA_NISTP256_SHA256, sign.ED25519},
		{sign.ED25519, sign.RSA_PSS_SHA384, sign.ECDSA_NISTP256_SHA256},
		{sign.ECDSA_NISTP384_SHA384},
		nil,
	}
	for name, key := range signingKeys(t) {
		for _, offered := range offers {
			require.NoError(t, CheckSigningKey(key, offered), "%s %v", name, offered)
		}
	}
}

// greedyKey ignores the offered order and prefers its own.
type greedyKey struct{ sign.SigningKey }

func (g greedyKey) ChooseScheme(offered []sign.SignatureScheme) sign.Signer {
	for i := len(offered) - 1; i >= 0; i-- {
		if s := g.SigningKey.ChooseScheme(offered[i : i+1]); s != nil {
			return s
		}
	}
	return nil
}

func TestCheckSigningKeyCatchesOrderViolation(t *testing.T) {
	key := signingKeys(t)["rsa"]
	err := CheckSigningKey(greedyKey{key}, []sign.SignatureScheme{sign.RSA_PSS_SHA256, sign.RSA_PKCS1_SHA256})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want first supported offered scheme rsa_pss_rsae_sha256")
}

// curveLiarKey labels its P-256 signatures as ecdsa_secp384r1_sha384.
type curveLiarKey struct {
	priv *ecdsa.PrivateKey
}

func (k curveLiarKey) ChooseScheme(offered []sign.SignatureScheme) sign.Signer {
	if slices.Contains(offered, sign.ECDSA_NISTP384_SHA384) {
		return curveLiarSigner(k)
	}
	return nil
}

func (k curveLiarKey) Algorithm() sign.SignatureAlgorithm { return sign.AlgECDSA }
func (k curveLiarKey) Public() crypto.PublicKey { return &k.priv.PublicKey }

type curveLiarSigner struct {
	priv *ecdsa.PrivateKey
}

func (s curveLiarSigner) Sign(message []byte) ([]byte, error) {
	digest := sha512.Sum384(message)
	return ecdsa.SignASN1(rand.Reader, s.priv, digest[:])
}

func (s curveLiarSigner) Scheme() sign.SignatureScheme { return sign.ECDSA_NISTP384_SHA384 }

func TestCheckSigningKeyCatchesCurveMismatch(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	err = CheckSigningKey(curveLiarKey{priv}, []sign.SignatureScheme{sign.ECDSA_NISTP384_SHA384})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify ecdsa_secp384r1_sha384 signature")
}
