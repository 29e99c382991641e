package sign

import (
	"crypto"
	"crypto/elliptic"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SignatureScheme is a TLS SignatureScheme registry value (RFC 8446, 4.2.3).
type SignatureScheme uint16

const (
	RSA_PKCS1_SHA1        SignatureScheme = 0x0201
	ECDSA_SHA1_Legacy     SignatureScheme = 0x0203
	RSA_PKCS1_SHA256      SignatureScheme = 0x0401
	ECDSA_NISTP256_SHA256 SignatureScheme = 0x0403
	RSA_PKCS1_SHA384      SignatureScheme = 0x0501
	ECDSA_NISTP384_SHA384 SignatureScheme = 0x0503
	RSA_PKCS1_SHA512      SignatureScheme = 0x0601
	ECDSA_NISTP521_SHA512 SignatureScheme = 0x0603
	RSA_PSS_SHA256        SignatureScheme = 0x0804
	RSA_PSS_SHA384        SignatureScheme = 0x0805
	RSA_PSS_SHA512        SignatureScheme = 0x0806
	ED25519               SignatureScheme = 0x0807
	ED448                 SignatureScheme = 0x0808
)

// SignatureAlgorithm is the TLS SignatureAlgorithm registry value naming a
// key's public-key family.
type SignatureAlgorithm uint8

const (
	AlgAnonymous SignatureAlgorithm = 0
	AlgRSA       SignatureAlgorithm = 1
	AlgDSA       SignatureAlgorithm = 2
	AlgECDSA     SignatureAlgorithm = 3
	AlgED25519   SignatureAlgorithm = 7
	AlgED448     SignatureAlgorithm = 8
)

func (a SignatureAlgorithm) String() string {
	switch a {
	case AlgAnonymous:
		return "anonymous"
	case AlgRSA:
		return "rsa"
	case AlgDSA:
		return "dsa"
	case AlgECDSA:
		return "ecdsa"
	case AlgED25519:
		return "ed25519"
	case AlgED448:
		return "ed448"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// schemeParams describes a scheme. hash is zero for schemes that sign the
// message directly; curve pins an ECDSA scheme to one curve and is nil for
// ecdsa_sha1.
type schemeParams struct {
	name  string
	alg   SignatureAlgorithm
	hash  crypto.Hash
	pss   bool
	curve elliptic.Curve
}

var schemeTable = map[SignatureScheme]schemeParams{
	RSA_PKCS1_SHA1:        {"rsa_pkcs1_sha1", AlgRSA, crypto.SHA1, false, nil},
	ECDSA_SHA1_Legacy:     {"ecdsa_sha1", AlgECDSA, crypto.SHA1, false, nil},
	RSA_PKCS1_SHA256:      {"rsa_pkcs1_sha256", AlgRSA, crypto.SHA256, false, nil},
	ECDSA_NISTP256_SHA256: {"ecdsa_secp256r1_sha256", AlgECDSA, crypto.SHA256, false, elliptic.P256()},
	RSA_PKCS1_SHA384:      {"rsa_pkcs1_sha384", AlgRSA, crypto.SHA384, false, nil},
	ECDSA_NISTP384_SHA384: {"ecdsa_secp384r1_sha384", AlgECDSA, crypto.SHA384, false, elliptic.P384()},
	RSA_PKCS1_SHA512:      {"rsa_pkcs1_sha512", AlgRSA, crypto.SHA512, false, nil},
	ECDSA_NISTP521_SHA512: {"ecdsa_secp521r1_sha512", AlgECDSA, crypto.SHA512, false, elliptic.P521()},
	RSA_PSS_SHA256:        {"rsa_pss_rsae_sha256", AlgRSA, crypto.SHA256, true, nil},
	RSA_PSS_SHA384:        {"rsa_pss_rsae_sha384", AlgRSA, crypto.SHA384, true, nil},
	RSA_PSS_SHA512:        {"rsa_pss_rsae_sha512", AlgRSA, crypto.SHA512, true, nil},
	ED25519:               {"ed25519", AlgED25519, 0, false, nil},
	ED448:                 {"ed448", AlgED448, 0, false, nil},
}

func (s SignatureScheme) String() string {
	if p, ok := schemeTable[s]; ok {
		return p.name
	}
	return fmt.Sprintf("unknown(0x%04x)", uint16(s))
}

// Algorithm returns the public-key family the scheme belongs to.
func (s SignatureScheme) Algorithm() SignatureAlgorithm {
	return schemeTable[s].alg
}

// SchemesFor lists every known scheme of the given family in code point order.
func SchemesFor(alg SignatureAlgorithm) []SignatureScheme {
	var out []SignatureScheme
	for s, p := range schemeTable {
		if p.alg == alg {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// ParseSignatureScheme accepts IANA names ("ecdsa_secp256r1_sha256") or hex
// code points ("0x0403").
func ParseSignatureScheme(s string) (SignatureScheme, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for scheme, p := range schemeTable {
		if p.name == norm {
			return scheme, nil
		}
	}
	if hexPart, ok := strings.CutPrefix(norm, "0x"); ok {
		if v, err := strconv.ParseUint(hexPart, 16, 16); err == nil {
			return SignatureScheme(v), nil
		}
	}
	return 0, fmt.Errorf("unknown signature scheme %q", s)
}

// ParseSignatureSchemes parses a list, keeping order.
func ParseSignatureSchemes(names []string) ([]SignatureScheme, error) {
	out := make([]SignatureScheme, 0, len(names))
	for _, n := range names {
		s, err := ParseSignatureScheme(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *SignatureScheme) UnmarshalText(text []byte) error {
	v, err := ParseSignatureScheme(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s SignatureScheme) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
