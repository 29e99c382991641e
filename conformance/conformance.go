// Package conformance holds the behavioural checks every backend of a provider
// family must pass, independent of which library implements it. Each check
// returns nil or the joined list of violations.
package conformance

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"

	"rubin.dev/tlsprovider/crypto/compress"
	"rubin.dev/tlsprovider/crypto/hashes"
	"rubin.dev/tlsprovider/crypto/sign"
)

// RoundTripSizes are the uncompressed lengths exercised by CheckCompression.
var RoundTripSizes = []int{16, 64, 512, 2048, 8192, 16384}

// CheckCompression verifies that comp and decomp are exact inverses, that
// decompression enforces the exact output length, and that non-compressed
// data is rejected.
func CheckCompression(comp compress.Compressor, decomp compress.Decompressor) error {
	var errs []error
	if comp.Algorithm() != decomp.Algorithm() {
		return fmt.Errorf("compressor is %s but decompressor is %s", comp.Algorithm(), decomp.Algorithm())
	}
	alg := comp.Algorithm()

	for _, n := range RoundTripSizes {
		random := make([]byte, n)
		if _, err := rand.Read(random); err != nil {
			return err
		}
		for _, original := range [][]byte{make([]byte, n), random} {
			for _, level := range []compress.Level{compress.Interactive, compress.Amortized} {
				compressed, err := comp.Compress(bytes.Clone(original), level)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: compress %d bytes (%s): %w", alg, n, level, err))
					continue
				}
				recovered := bytes.Repeat([]byte{0xff}, n)
				if err := decomp.Decompress(compressed, recovered); err != nil {
					errs = append(errs, fmt.Errorf("%s: decompress %d bytes (%s): %w", alg, n, level, err))
					continue
				}
				if !bytes.Equal(original, recovered) {
					errs = append(errs, fmt.Errorf("%s: round trip of %d bytes (%s) differs", alg, n, level))
				}
			}
		}
	}

	original := make([]byte, 2048)
	compressed, err := comp.Compress(bytes.Clone(original), compress.Interactive)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: compress: %w", alg, err))
	} else {
		for _, n := range []int{len(original) + 1, len(original) - 1} {
			if decomp.Decompress(compressed, make([]byte, n)) == nil {
				errs = append(errs, fmt.Errorf("%s: decompressing %d bytes into %d succeeded", alg, len(original), n))
			}
		}
	}

	if decomp.Decompress(make([]byte, 1024), make([]byte, 512)) == nil {
		errs = append(errs, fmt.Errorf("%s: zero bytes decompressed successfully", alg))
	}
	return errors.Join(errs...)
}

// CheckHash verifies output length, streaming against one-shot hashing, fork
// independence and that ForkFinish leaves its context usable.
func CheckHash(p hashes.Provider) (err error) {
	var errs []error
	alg := p.Algorithm()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(append(errs, fmt.Errorf("%s: panic: %v", alg, r))...)
		}
	}()
	prefix, tail := []byte("client hello"), []byte("server hello")
	full := append(bytes.Clone(prefix), tail...)

	want := p.Hash(full)
	if want.Len() != p.OutputLen() {
		errs = append(errs, fmt.Errorf("%s: digest is %d bytes, provider says %d", alg, want.Len(), p.OutputLen()))
	}

	ctx := p.Start()
	ctx.Update(prefix)
	mid := ctx.ForkFinish()
	if !mid.Equal(p.Hash(prefix)) {
		errs = append(errs, fmt.Errorf("%s: ForkFinish does not match one-shot hash of the prefix", alg))
	}
	fork := ctx.Fork()
	ctx.Update(tail)
	if got := ctx.ForkFinish(); !got.Equal(want) {
		errs = append(errs, fmt.Errorf("%s: streaming digest differs from one-shot", alg))
	}
	if got := fork.Finish(); !got.Equal(mid) {
		errs = append(errs, fmt.Errorf("%s: fork observed updates made after it was taken", alg))
	}
	if got := ctx.Finish(); !got.Equal(want) {
		errs = append(errs, fmt.Errorf("%s: ForkFinish altered the context", alg))
	}

	if got := p.Start().Finish(); !got.Equal(p.Hash(nil)) {
		errs = append(errs, fmt.Errorf("%s: empty context digest differs from hash of nothing", alg))
	}
	return errors.Join(errs...)
}

// CheckSigningKey verifies negotiation against offered: the chosen scheme is
// the first one in offered the key accepts on its own, the signer keeps its
// scheme, and signatures are produced (and verified when the key exposes its
// public half). A key accepting none of offered passes only if it returns
// nil.
func CheckSigningKey(key sign.SigningKey, offered []sign.SignatureScheme) error {
	var errs []error
	var first sign.SignatureScheme
	found := false
	for _, s := range offered {
		if key.ChooseScheme([]sign.SignatureScheme{s}) != nil {
			first, found = s, true
			break
		}
	}

	signer := key.ChooseScheme(offered)
	switch {
	case !found && signer == nil:
		return nil
	case signer == nil:
		return fmt.Errorf("no signer chosen although %s is supported", first)
	case !found:
		return fmt.Errorf("signer chosen for %s although no offered scheme is supported alone", signer.Scheme())
	}

	scheme := signer.Scheme()
	if scheme != first {
		errs = append(errs, fmt.Errorf("chose %s, want first supported offered scheme %s", scheme, first))
	}
	if !slices.Contains(offered, scheme) {
		errs = append(errs, fmt.Errorf("chose %s, which was not offered", scheme))
	}
	if scheme.Algorithm() != key.Algorithm() {
		errs = append(errs, fmt.Errorf("scheme %s does not belong to a %s key", scheme, key.Algorithm()))
	}

	msg := []byte("conformance signing payload")
	sig, err := signer.Sign(msg)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("sign with %s: %w", scheme, err))...)
	}
	if len(sig) == 0 {
		errs = append(errs, fmt.Errorf("%s produced an empty signature", scheme))
	}
	if signer.Scheme() != scheme {
		errs = append(errs, fmt.Errorf("signer scheme changed from %s to %s", scheme, signer.Scheme()))
	}
	if pk, ok := key.(interface{ Public() crypto.PublicKey }); ok && pk.Public() != nil {
		if err := sign.Verify(pk.Public(), scheme, msg, sig); err != nil {
			errs = append(errs, fmt.Errorf("verify %s signature: %w", scheme, err))
		}
	}
	return errors.Join(errs...)
}
