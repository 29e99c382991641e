package sign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
)

// Verify checks sig over message under scheme with pub. It is the inverse of
// Signer.Sign and is used by self tests; peer signature verification belongs
// to the handshake layer.
func Verify(pub crypto.PublicKey, scheme SignatureScheme, message, sig []byte) error {
	p, ok := schemeTable[scheme]
	if !ok {
		return fmt.Errorf("unknown signature scheme %s", scheme)
	}
	digest := message
	if p.hash != 0 {
		h := p.hash.New()
		_, _ = h.Write(message)
		digest = h.Sum(nil)
	}

	switch k := pub.(type) {
	case *rsa.PublicKey:
		if p.alg != AlgRSA {
			break
		}
		if p.pss {
			return rsa.VerifyPSS(k, p.hash, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
		}
		return rsa.VerifyPKCS1v15(k, p.hash, digest, sig)
	case *ecdsa.PublicKey:
		if p.alg != AlgECDSA {
			break
		}
		if p.curve != nil && k.Curve != p.curve {
			return fmt.Errorf("%s cannot be verified with a %s key", scheme, k.Curve.Params().Name)
		}
		if !ecdsa.VerifyASN1(k, digest, sig) {
			return fmt.Errorf("%s: signature mismatch", scheme)
		}
		return nil
	case ed25519.PublicKey:
		if p.alg != AlgED25519 {
			break
		}
		if !ed25519.Verify(k, message, sig) {
			return fmt.Errorf("%s: signature mismatch", scheme)
		}
		return nil
	}
	return fmt.Errorf("%s cannot be verified with a %T", scheme, pub)
}
