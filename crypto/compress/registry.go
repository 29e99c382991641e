package compress

import (
	"fmt"
	"slices"
)

// Backend pairs the compressor and decompressor for one algorithm.
type Backend struct {
	Compressor   Compressor
	Decompressor Decompressor
}

var builtin = map[Algorithm]Backend{
	Zlib:   {ZlibCompressor, ZlibDecompressor},
	Brotli: {BrotliCompressor, BrotliDecompressor},
	Zstd:   {ZstdCompressor, ZstdDecompressor},
}

// Lookup returns the built-in backend for alg.
func Lookup(alg Algorithm) (Backend, error) {
	b, ok := builtin[alg]
	if !ok {
		return Backend{}, fmt.Errorf("no compression backend for %s", alg)
	}
	return b, nil
}

// BuiltinAlgorithms lists every algorithm this package has a backend for.
func BuiltinAlgorithms() []Algorithm {
	return []Algorithm{Brotli, Zlib, Zstd}
}

// Registry is the set of compressors and decompressors enabled for a
// process or connection configuration. It is immutable after construction.
type Registry struct {
	algs    []Algorithm
	comps   []Compressor
	decomps []Decompressor
}

// NewRegistry enables the named algorithms in preference order. An empty list
// disables certificate compression.
func NewRegistry(enabled ...Algorithm) (*Registry, error) {
	r := &Registry{}
	for _, alg := range enabled {
		if slices.Contains(r.algs, alg) {
			return nil, fmt.Errorf("compression algorithm %s enabled twice", alg)
		}
		b, err := Lookup(alg)
		if err != nil {
			return nil, err
		}
		if err := r.add(alg, b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistryWith builds a registry from externally supplied backends, for
// implementations living outside this package.
func NewRegistryWith(backends ...Backend) (*Registry, error) {
	r := &Registry{}
	for _, b := range backends {
		if b.Compressor == nil || b.Decompressor == nil {
			return nil, fmt.Errorf("compression backend is missing a half")
		}
		alg := b.Compressor.Algorithm()
		if slices.Contains(r.algs, alg) {
			return nil, fmt.Errorf("compression algorithm %s enabled twice", alg)
		}
		if err := r.add(alg, b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(alg Algorithm, b Backend) error {
	if b.Decompressor.Algorithm() != alg {
		return fmt.Errorf("compressor is %s but decompressor is %s", alg, b.Decompressor.Algorithm())
	}
	r.algs = append(r.algs, alg)
	r.comps = append(r.comps, b.Compressor)
	r.decomps = append(r.decomps, b.Decompressor)
	return nil
}

// DefaultRegistry enables every built-in algorithm.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinAlgorithms()...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Algorithms() []Algorithm { return slices.Clone(r.algs) }

func (r *Registry) Compressors() []Compressor { return slices.Clone(r.comps) }

func (r *Registry) Decompressors() []Decompressor { return slices.Clone(r.decomps) }

// Compressor returns the enabled compressor for alg, or nil.
func (r *Registry) Compressor(alg Algorithm) Compressor {
	if i := slices.Index(r.algs, alg); i >= 0 {
		return r.comps[i]
	}
	return nil
}

// Decompressor returns the enabled decompressor for alg, or nil.
func (r *Registry) Decompressor(alg Algorithm) Decompressor {
	if i := slices.Index(r.algs, alg); i >= 0 {
		return r.decomps[i]
	}
	return nil
}

// Negotiate returns the first algorithm in offered that is enabled here.
func (r *Registry) Negotiate(offered []Algorithm) (Algorithm, bool) {
	for _, alg := range offered {
		if slices.Contains(r.algs, alg) {
			return alg, true
		}
	}
	return 0, false
}
