package hashes

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"
)

const tls13LabelPrefix = "tls13 "

var ErrHkdfOutputTooLong = errors.New("hkdf: requested output too long")

// Hkdf runs HKDF (RFC 5869) over a hash provider, including the TLS 1.3
// HKDF-Expand-Label construction.
type Hkdf struct {
	h Hasher
}

func NewHkdf(h Hasher) *Hkdf {
	return &Hkdf{h: h}
}

func (k *Hkdf) Algorithm() HashAlgorithm { return k.h.Algorithm() }

// Extract returns the pseudorandom key for secret and salt. A nil secret is
// replaced by OutputLen zero bytes, as for the TLS 1.3 early secret without
// a PSK.
func (k *Hkdf) Extract(secret, salt []byte) []byte {
	if secret == nil {
		secret = make([]byte, k.h.OutputLen())
	}
	return hkdf.Extract(k.h.New, secret, salt)
}

// Expand derives length bytes from prk and info.
func (k *Hkdf) Expand(prk, info []byte, length int) ([]byte, error) {
	if length < 0 || length > 255*k.h.OutputLen() {
		return nil, fmt.Errorf("%w: %d bytes", ErrHkdfOutputTooLong, length)
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(k.h.New, prk, info), out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// ExpandLabel implements HKDF-Expand-Label from RFC 8446, section 7.1.
func (k *Hkdf) ExpandLabel(secret []byte, label string, context []byte, length int) ([]byte, error) {
	info, err := hkdfLabel(label, context, length)
	if err != nil {
		return nil, err
	}
	return k.Expand(secret, info, length)
}

// DeriveSecret implements Derive-Secret from RFC 8446, section 7.1, with the
// transcript digest already computed by the caller.
func (k *Hkdf) DeriveSecret(secret []byte, label string, transcript Output) ([]byte, error) {
	return k.ExpandLabel(secret, label, transcript.Bytes(), k.h.OutputLen())
}

func hkdfLabel(label string, context []byte, length int) ([]byte, error) {
	if length < 0 || length > 0xffff {
		return nil, fmt.Errorf("%w: %d bytes", ErrHkdfOutputTooLong, length)
	}
	if len(tls13LabelPrefix)+len(label) > 255 || len(context) > 255 {
		return nil, errors.New("hkdf: label or context too long")
	}
	var b cryptobyte.Builder
	b.AddUint16(uint16(length))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(tls13LabelPrefix))
		b.AddBytes([]byte(label))
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(context)
	})
	return b.Bytes()
}
