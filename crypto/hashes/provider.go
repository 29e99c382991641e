package hashes

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding"
	"fmt"
	"hash"
)

// Provider describes one hash algorithm and produces streaming contexts for it.
// Providers are stateless and safe for concurrent use.
type Provider interface {
	Algorithm() HashAlgorithm
	OutputLen() int
	// Start returns a new, empty context bound to this algorithm.
	Start() Context
	// Hash returns the digest of exactly data.
	Hash(data []byte) Output
}

// Context accumulates input for one algorithm. A context is owned by a single
// goroutine at a time; it may be handed between goroutines but not shared.
type Context interface {
	Update(data []byte)
	// Finish returns the digest of everything accumulated and ends the
	// context. Any later call on the context panics.
	Finish() Output
	// Fork returns an independent context holding a copy of the current state.
	Fork() Context
	// ForkFinish returns the digest of the current state without ending the
	// context.
	ForkFinish() Output
}

// Hasher is a Provider that also exposes its underlying hash.Hash
// constructor, as needed by HMAC-based constructions.
type Hasher interface {
	Provider
	New() hash.Hash
}

type stdProvider struct {
	alg      HashAlgorithm
	outLen   int
	newFn    func() hash.Hash
	snapshot bool
}

var (
	sha256Provider = NewProvider(SHA256, sha256.Size, sha256.New)
	sha384Provider = NewProvider(SHA384, sha512.Size384, sha512.New384)
	sha512Provider = NewProvider(SHA512, sha512.Size, sha512.New)
)

// SHA256Provider, SHA384Provider and SHA512Provider return the stdlib-backed
// providers.
func SHA256Provider() Hasher { return sha256Provider }
func SHA384Provider() Hasher { return sha384Provider }
func SHA512Provider() Hasher { return sha512Provider }

// NewProvider wraps any hash.Hash constructor. If the hash state can be
// marshalled, forks copy the marshalled state; otherwise contexts retain
// their input and forks replay it.
func NewProvider(alg HashAlgorithm, outLen int, newFn func() hash.Hash) Hasher {
	if outLen <= 0 || outLen > MaxOutputLen {
		panic(fmt.Sprintf("hashes: invalid output length %d for %s", outLen, alg))
	}
	_, m := newFn().(encoding.BinaryMarshaler)
	_, u := newFn().(encoding.BinaryUnmarshaler)
	return &stdProvider{alg: alg, outLen: outLen, newFn: newFn, snapshot: m && u}
}

func (p *stdProvider) Algorithm() HashAlgorithm { return p.alg }
func (p *stdProvider) OutputLen() int           { return p.outLen }
func (p *stdProvider) New() hash.Hash           { return p.newFn() }

func (p *stdProvider) Start() Context {
	if p.snapshot {
		return &snapshotContext{p: p, h: p.newFn()}
	}
	return &replayContext{p: p, h: p.newFn()}
}

func (p *stdProvider) Hash(data []byte) Output {
	ctx := p.Start()
	ctx.Update(data)
	return ctx.Finish()
}

func (p *stdProvider) String() string { return p.alg.String() }

// Lookup returns the built-in provider for alg.
func Lookup(alg HashAlgorithm) (Hasher, error) {
	switch alg {
	case SHA256:
		return sha256Provider, nil
	case SHA384:
		return sha384Provider, nil
	case SHA512:
		return sha512Provider, nil
	default:
		return nil, fmt.Errorf("no provider for hash algorithm %s", alg)
	}
}

// Providers resolves each identifier, preserving order.
func Providers(algs ...HashAlgorithm) ([]Hasher, error) {
	out := make([]Hasher, 0, len(algs))
	for _, alg := range algs {
		p, err := Lookup(alg)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
