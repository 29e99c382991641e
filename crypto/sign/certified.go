package sign

import (
	"crypto"
	"crypto/x509"
)

// CertifiedKey packages a certificate chain with its signing key and an
// optional stapled OCSP response. Chain[0] is the end-entity certificate;
// entries are DER encoded. A CertifiedKey is read-only once configured.
type CertifiedKey struct {
	Chain [][]byte
	Key   SigningKey
	OCSP  []byte
}

// NewCertifiedKey does no validation of the chain; an empty chain surfaces
// as an error from EndEntityCert.
func NewCertifiedKey(chain [][]byte, key SigningKey) *CertifiedKey {
	return &CertifiedKey{Chain: chain, Key: key}
}

func (ck *CertifiedKey) EndEntityCert() ([]byte, error) {
	if ck == nil || len(ck.Chain) == 0 {
		return nil, ErrNoCertificatesPresented
	}
	return ck.Chain[0], nil
}

// KeysMatch reports whether the end-entity certificate carries the public
// half of Key.
func (ck *CertifiedKey) KeysMatch() error {
	ee, err := ck.EndEntityCert()
	if err != nil {
		return err
	}
	cert, err := x509.ParseCertificate(ee)
	if err != nil {
		return signerr(SIGN_ERR_KEY_PARSE, "end-entity certificate", err)
	}
	pk, ok := ck.Key.(interface{ Public() crypto.PublicKey })
	if !ok {
		return signerr(SIGN_ERR_KEY_MISMATCH, "signing key does not expose its public key", nil)
	}
	eq, ok := pk.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !eq.Equal(cert.PublicKey) {
		return ErrKeyMismatch
	}
	return nil
}
