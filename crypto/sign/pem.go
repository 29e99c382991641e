package sign

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// ParsePrivateKeyDER accepts PKCS#8, PKCS#1 (RSA) and SEC1 (EC) encodings.
func ParsePrivateKeyDER(der []byte) (SigningKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		s, ok := key.(crypto.Signer)
		if !ok {
			return nil, signerr(SIGN_ERR_UNSUPPORTED_KEY, fmt.Sprintf("%T", key), nil)
		}
		return NewSigningKey(s)
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return NewSigningKey(key)
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return NewSigningKey(key)
	}
	return nil, signerr(SIGN_ERR_KEY_PARSE, "not a PKCS#8, PKCS#1 or SEC1 private key", nil)
}

// LoadCertChainPEM returns the DER bytes of every CERTIFICATE block, in file
// order.
func LoadCertChainPEM(data []byte) ([][]byte, error) {
	var chain [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			chain = append(chain, block.Bytes)
		}
	}
	if len(chain) == 0 {
		return nil, ErrNoCertificatesPresented
	}
	return chain, nil
}

// LoadPrivateKeyPEM parses the first private key block in data.
func LoadPrivateKeyPEM(data []byte) (SigningKey, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, signerr(SIGN_ERR_KEY_PARSE, "no private key PEM block", nil)
		}
		switch block.Type {
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			return ParsePrivateKeyDER(block.Bytes)
		}
	}
}

// LoadCertifiedKeyFiles reads a PEM chain and PEM key, plus an optional DER
// OCSP response when ocspPath is non-empty.
func LoadCertifiedKeyFiles(chainPath, keyPath, ocspPath string) (*CertifiedKey, error) {
	chainPEM, err := os.ReadFile(chainPath) // #nosec G304 -- operator-supplied path.
	if err != nil {
		return nil, fmt.Errorf("read cert chain: %w", err)
	}
	chain, err := LoadCertChainPEM(chainPEM)
	if err != nil {
		return nil, fmt.Errorf("cert chain %s: %w", chainPath, err)
	}
	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 -- operator-supplied path.
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := LoadPrivateKeyPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("private key %s: %w", keyPath, err)
	}
	ck := NewCertifiedKey(chain, key)
	if ocspPath != "" {
		ocsp, err := os.ReadFile(ocspPath) // #nosec G304 -- operator-supplied path.
		if err != nil {
			return nil, fmt.Errorf("read ocsp response: %w", err)
		}
		ck.OCSP = ocsp
	}
	return ck, nil
}
