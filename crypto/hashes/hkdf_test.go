package hashes

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// RFC 5869, appendix A.1.
func TestHkdfRFC5869Case1(t *testing.T) {
	k := NewHkdf(SHA256Provider())
	ikm := mustHex(t, "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b")
	salt := mustHex(t, "000102030405060708090a0b0c")
	info := mustHex(t, "f0f1f2f3f4f5f6f7f8f9")

	prk := k.Extract(ikm, salt)
	assert.Equal(t, "077709362c2e32df0ddc3f0dc47bba6390b6c73bb50f9c3122ec844ad7c2b3e5", hex.EncodeToString(prk))

	okm, err := k.Expand(prk, info, 42)
	require.NoError(t, err)
	assert.Equal(t, "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865", hex.EncodeToString(okm))
}

func TestHkdfLabelEncoding(t *testing.T) {
	info, err := hkdfLabel("key", nil, 16)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x00, 0x10, 0x09}, append([]byte("tls13 key"), 0x00)...), info)

	ctx := []byte{0xaa, 0xbb}
	info, err = hkdfLabel("iv", ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x00, 0x0c, 0x08}, append([]byte("tls13 iv"), 0x02, 0xaa, 0xbb)...), info)
}

func TestExpandLabelMatchesExpand(t *testing.T) {
	k := NewHkdf(SHA384Provider())
	assert.Equal(t, SHA384, k.Algorithm())
	secret := k.Extract(nil, nil)
	assert.Len(t, secret, 48)

	got, err := k.ExpandLabel(secret, "key", nil, 32)
	require.NoError(t, err)

	info, err := hkdfLabel("key", nil, 32)
	require.NoError(t, err)
	want, err := k.Expand(secret, info, 32)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeriveSecretUsesTranscript(t *testing.T) {
	p := SHA256Provider()
	k := NewHkdf(p)
	secret := k.Extract(nil, nil)
	tr := NewTranscriptBuffer(false).Start(p)
	tr.Add([]byte("hello"))

	got, err := k.DeriveSecret(secret, "c hs traffic", tr.Current())
	require.NoError(t, err)
	want, err := k.ExpandLabel(secret, "c hs traffic", p.Hash([]byte("hello")).Bytes(), 32)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHkdfRejectsOversizeOutput(t *testing.T) {
	k := NewHkdf(SHA256Provider())
	_, err := k.Expand(make([]byte, 32), nil, 255*32+1)
	require.ErrorIs(t, err, ErrHkdfOutputTooLong)

	_, err = k.ExpandLabel(make([]byte, 32), string(make([]byte, 250)), nil, 16)
	require.Error(t, err)
}

func TestHkdfExpandRejectsNegativeLength(t *testing.T) {
	k := NewHkdf(SHA256Provider())
	_, err := k.Expand(make([]byte, 32), nil, -1)
	require.ErrorIs(t, err, ErrHkdfOutputTooLong)
}

func TestHkdfExtractNilSecretIsZeros(t *testing.T) {
	k := NewHkdf(SHA256Provider())
	salt := []byte("derived")
	assert.Equal(t, k.Extract(make([]byte, 32), salt), k.Extract(nil, salt))
	assert.Equal(t, k.Extract(make([]byte, 32), make([]byte, 32)), k.Extract(nil, nil))
}
