// Package hashes implements the hash provider family: fixed-output hash
// algorithms producing streaming contexts that can be snapshotted without
// being consumed.
package hashes

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashAlgorithm is a TLS HashAlgorithm registry value.
type HashAlgorithm uint8

const (
	None   HashAlgorithm = 0
	MD5    HashAlgorithm = 1
	SHA1   HashAlgorithm = 2
	SHA224 HashAlgorithm = 3
	SHA256 HashAlgorithm = 4
	SHA384 HashAlgorithm = 5
	SHA512 HashAlgorithm = 6
)

var hashAlgorithmNames = map[HashAlgorithm]string{
	None:   "none",
	MD5:    "md5",
	SHA1:   "sha1",
	SHA224: "sha224",
	SHA256: "sha256",
	SHA384: "sha384",
	SHA512: "sha512",
}

func (a HashAlgorithm) String() string {
	if s, ok := hashAlgorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(a))
}

// ParseHashAlgorithm accepts the lower-case registry name ("sha256") with
// optional dashes ("sha-256").
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "")
	for alg, name := range hashAlgorithmNames {
		if name == norm {
			return alg, nil
		}
	}
	return None, fmt.Errorf("unknown hash algorithm %q", s)
}

func (a *HashAlgorithm) UnmarshalText(text []byte) error {
	v, err := ParseHashAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a HashAlgorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// MaxOutputLen is the largest digest any provider may produce.
const MaxOutputLen = 64

// Output is a fixed-length digest. Its length is set by the algorithm that
// produced it, never by the input.
type Output struct {
	buf  [MaxOutputLen]byte
	used int
}

// NewOutput copies b into an Output. It panics if b is longer than
// MaxOutputLen; providers never produce such digests.
func NewOutput(b []byte) Output {
	if len(b) > MaxOutputLen {
		panic(fmt.Sprintf("hashes: digest of %d bytes exceeds %d", len(b), MaxOutputLen))
	}
	var o Output
	o.used = copy(o.buf[:], b)
	return o
}

func (o Output) Bytes() []byte {
	out := make([]byte, o.used)
	copy(out, o.buf[:o.used])
	return out
}

func (o Output) Len() int { return o.used }

func (o Output) Equal(other Output) bool {
	return o.used == other.used && o.buf == other.buf
}

func (o Output) String() string {
	return hex.EncodeToString(o.buf[:o.used])
}
