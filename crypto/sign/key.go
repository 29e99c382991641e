// Package sign implements the signing provider family: private keys that
// negotiate a TLS signature scheme and produce signers for it.
package sign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"io"
	"slices"
)

// SigningKey is a private key's signing capability. Keys are immutable once
// built and are shared by every connection using the identity.
type SigningKey interface {
	// ChooseScheme returns a signer for the first scheme in offered that the
	// key supports, or nil if there is none. The order of offered decides.
	ChooseScheme(offered []SignatureScheme) Signer
	// Algorithm is the key's public-key family.
	Algorithm() SignatureAlgorithm
}

// Signer signs messages under one scheme fixed at construction.
type Signer interface {
	// Sign hashes message as the scheme requires and signs the result.
	Sign(message []byte) ([]byte, error)
	Scheme() SignatureScheme
}

// RSA keys offer PSS ahead of PKCS#1 and larger hashes first; the offered
// list still decides the outcome.
var rsaSchemes = []SignatureScheme{
	RSA_PSS_SHA512,
	RSA_PSS_SHA384,
	RSA_PSS_SHA256,
	RSA_PKCS1_SHA512,
	RSA_PKCS1_SHA384,
	RSA_PKCS1_SHA256,
}

// cryptoKey adapts a crypto.Signer. The inner key may be a software key or a
// handle to a token; it must be safe for concurrent Sign calls.
type cryptoKey struct {
	key     crypto.Signer
	alg     SignatureAlgorithm
	schemes []SignatureScheme
	rand    io.Reader
}

// NewSigningKey wraps an RSA, ECDSA (P-256, P-384, P-521) or Ed25519 key.
func NewSigningKey(key crypto.Signer) (SigningKey, error) {
	k := &cryptoKey{key: key, rand: rand.Reader}
	switch pub := key.Public().(type) {
	case *rsa.PublicKey:
		k.alg = AlgRSA
		k.schemes = rsaSchemes
	case *ecdsa.PublicKey:
		k.alg = AlgECDSA
		switch pub.Curve {
		case elliptic.P256():
			k.schemes = []SignatureScheme{ECDSA_NISTP256_SHA256}
		case elliptic.P384():
			k.schemes = []SignatureScheme{ECDSA_NISTP384_SHA384}
		case elliptic.P521():
			k.schemes = []SignatureScheme{ECDSA_NISTP521_SHA512}
		default:
			return nil, signerr(SIGN_ERR_UNSUPPORTED_KEY, fmt.Sprintf("ecdsa curve %s", pub.Curve.Params().Name), nil)
		}
	case ed25519.PublicKey:
		k.alg = AlgED25519
		k.schemes = []SignatureScheme{ED25519}
	default:
		return nil, signerr(SIGN_ERR_UNSUPPORTED_KEY, fmt.Sprintf("%T", pub), nil)
	}
	return k, nil
}

func (k *cryptoKey) ChooseScheme(offered []SignatureScheme) Signer {
	for _, s := range offered {
		if slices.Contains(k.schemes, s) {
			return &cryptoSigner{key: k, scheme: s, params: schemeTable[s]}
		}
	}
	return nil
}

func (k *cryptoKey) Algorithm() SignatureAlgorithm { return k.alg }

// Public returns the public half of the key.
func (k *cryptoKey) Public() crypto.PublicKey { return k.key.Public() }

// Schemes lists the schemes the key can sign with.
func (k *cryptoKey) Schemes() []SignatureScheme { return slices.Clone(k.schemes) }

func (k *cryptoKey) String() string {
	return fmt.Sprintf("SigningKey(%s)", k.alg)
}

type cryptoSigner struct {
	key    *cryptoKey
	scheme SignatureScheme
	params schemeParams
}

func (s *cryptoSigner) Sign(message []byte) ([]byte, error) {
	digest := message
	var opts crypto.SignerOpts = crypto.Hash(0)
	if s.params.hash != 0 {
		h := s.params.hash.New()
		_, _ = h.Write(message)
		digest = h.Sum(nil)
		opts = s.params.hash
	}
	if s.params.pss {
		opts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: s.params.hash}
	}

	sig, err := s.key.key.Sign(s.key.rand, digest, opts)
	if err != nil {
		return nil, signerr(SIGN_ERR_SIGN_FAILED, s.scheme.String(), err)
	}
	return sig, nil
}

func (s *cryptoSigner) Scheme() SignatureScheme { return s.scheme }
