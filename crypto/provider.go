// Package crypto assembles the provider families a TLS endpoint is configured
// with: transcript hashes, the certificate compression registry (with its
// amortized cache) and the certified signing identity.
package crypto

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"rubin.dev/tlsprovider/certcache"
	"rubin.dev/tlsprovider/config"
	"rubin.dev/tlsprovider/crypto/compress"
	"rubin.dev/tlsprovider/crypto/hashes"
	"rubin.dev/tlsprovider/crypto/sign"
)

var (
	ErrNoCommonScheme      = errors.New("no mutually supported signature scheme")
	ErrAlgorithmNotEnabled = errors.New("algorithm not enabled")
)

// Provider is the narrow crypto surface used by handshake code. It is
// immutable after New except for the key monitor state.
type Provider struct {
	hashes   []hashes.Hasher
	registry *compress.Registry
	schemes  []sign.SignatureScheme
	identity *sign.CertifiedKey
	monitor  *sign.KeyMonitor
	cache    *certcache.Cache
	store    *certcache.Store
	logger   zerolog.Logger
}

// New builds a Provider from a validated configuration. The signing identity
// is loaded when cfg.Signing names a chain and key.
func New(cfg *config.Config, logger zerolog.Logger) (*Provider, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	p := &Provider{
		schemes: slices.Clone(cfg.Signing.Schemes),
		logger:  logger.With().Str("component", "provider").Logger(),
	}

	hs, err := hashes.Providers(cfg.Hash.Algorithms...)
	if err != nil {
		return nil, err
	}
	p.hashes = hs
	if p.registry, err = compress.NewRegistry(cfg.Compression.Algorithms...); err != nil {
		return nil, err
	}

	if cfg.Signing.CertChain != "" {
		ck, err := sign.LoadCertifiedKeyFiles(cfg.Signing.CertChain, cfg.Signing.Key, cfg.Signing.OCSP)
		if err != nil {
			return nil, fmt.Errorf("load signing identity: %w", err)
		}
		if err := p.SetIdentity(ck, cfg.Signing); err != nil {
			return nil, err
		}
	}

	if cfg.Cache.Enabled {
		opts := certcache.Options{
			MaxEntries:    cfg.Cache.MaxEntries,
			Logger:        logger,
			Decompressors: p.registry.Decompressors(),
		}
		if cfg.Cache.Dir != "" {
			st, err := certcache.OpenStore(cfg.Cache.Dir, p.registry.Algorithms()...)
			if err != nil {
				return nil, fmt.Errorf("open certificate cache: %w", err)
			}
			p.store = st
			opts.Store = st
		}
		p.cache = certcache.New(opts)
	}

	p.logger.Debug().
		Strs("hashes", algNames(cfg.Hash.Algorithms)).
		Strs("compression", algNames(p.registry.Algorithms())).
		Bool("identity", p.identity != nil).
		Bool("cache", p.cache != nil).
		Msg("provider ready")
	return p, nil
}

func algNames[T fmt.Stringer](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

// SetIdentity installs ck as the signing identity. The end-entity certificate
// must carry the key's public half. With the monitor enabled the key is
// guarded by a KeyMonitor that probes it by signing.
func (p *Provider) SetIdentity(ck *sign.CertifiedKey, cfg config.SigningConfig) error {
	if err := ck.KeysMatch(); err != nil {
		return err
	}
	if cfg.Monitor.Enabled {
		inner := ck.Key
		p.monitor = sign.NewKeyMonitor(cfg.MonitorSettings(), probeKey(inner), func() {
			p.logger.Error().Msg("signing key failed over; handshakes requiring a signature will fail")
		}, p.logger)
		ck = &sign.CertifiedKey{Chain: ck.Chain, Key: sign.Guard(inner, p.monitor), OCSP: ck.OCSP}
	}
	p.identity = ck
	return nil
}

// probeKey signs a fixed message with any scheme the key supports.
func probeKey(key sign.SigningKey) sign.HealthCheckFn {
	all := sign.SchemesFor(key.Algorithm())
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := key.ChooseScheme(all)
		if s == nil {
			return errors.New("key offers no scheme")
		}
		_, err := s.Sign([]byte("tlsprov key health probe"))
		return err
	}
}

// Run drives the key monitor until ctx is done. It returns at once when no
// monitor is configured.
func (p *Provider) Run(ctx context.Context) {
	if p.monitor == nil {
		return
	}
	p.monitor.Run(ctx)
}

func (p *Provider) Close() error {
	return p.store.Close()
}

// Hashes lists the enabled hash providers in preference order.
func (p *Provider) Hashes() []hashes.Hasher { return slices.Clone(p.hashes) }

// Hash returns the enabled provider for alg.
func (p *Provider) Hash(alg hashes.HashAlgorithm) (hashes.Hasher, error) {
	for _, h := range p.hashes {
		if h.Algorithm() == alg {
			return h, nil
		}
	}
	return nil, fmt.Errorf("hash %s: %w", alg, ErrAlgorithmNotEnabled)
}

func (p *Provider) Compression() *compress.Registry { return p.registry }

// Identity is the configured CertifiedKey, or nil.
func (p *Provider) Identity() *sign.CertifiedKey { return p.identity }

// Monitor is the key monitor, or nil when monitoring is off.
func (p *Provider) Monitor() *sign.KeyMonitor { return p.monitor }

func (p *Provider) CacheStats() (certcache.Stats, bool) {
	if p.cache == nil {
		return certcache.Stats{}, false
	}
	return p.cache.Stats(), true
}

// ChooseSigner negotiates against the peer's offered schemes, restricted to
// the locally allowed ones. The peer's order decides among those.
func (p *Provider) ChooseSigner(offered []sign.SignatureScheme) (sign.Signer, error) {
	if _, err := p.identity.EndEntityCert(); err != nil {
		return nil, err
	}
	allowed := make([]sign.SignatureScheme, 0, len(offered))
	for _, s := range offered {
		if slices.Contains(p.schemes, s) {
			allowed = append(allowed, s)
		}
	}
	s := p.identity.Key.ChooseScheme(allowed)
	if s == nil {
		return nil, ErrNoCommonScheme
	}
	return s, nil
}

// CompressCertificate compresses a Certificate message body with alg.
// Amortized compressions go through the cache when one is configured.
func (p *Provider) CompressCertificate(alg compress.Algorithm, msg []byte, level compress.Level) ([]byte, error) {
	c := p.registry.Compressor(alg)
	if c == nil {
		return nil, fmt.Errorf("compression %s: %w", alg, ErrAlgorithmNotEnabled)
	}
	if level == compress.Amortized && p.cache != nil {
		return p.cache.Compress(c, msg)
	}
	return c.Compress(msg, level)
}

// DecompressCertificate returns exactly uncompressedLen bytes or fails.
func (p *Provider) DecompressCertificate(alg compress.Algorithm, compressed []byte, uncompressedLen int) ([]byte, error) {
	d := p.registry.Decompressor(alg)
	if d == nil {
		return nil, fmt.Errorf("compression %s: %w", alg, ErrAlgorithmNotEnabled)
	}
	if uncompressedLen < 0 || uncompressedLen > compress.MaxDecompressedLen {
		return nil, compress.ErrDecompressionFailed
	}
	out := make([]byte, uncompressedLen)
	if err := d.Decompress(compressed, out); err != nil {
		return nil, err
	}
	return out, nil
}
