package sign

import (
	"context"
	"crypto"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// KeyState is the availability of the device behind a signing key.
type KeyState int32

const (
	KeyStateNormal   KeyState = 0 // device reachable, signing works
	KeyStateReadOnly KeyState = 1 // device unreachable, signing refused
	KeyStateFailed   KeyState = 2 // unreachable past the failover timeout
)

func (s KeyState) String() string {
	switch s {
	case KeyStateNormal:
		return "NORMAL"
	case KeyStateReadOnly:
		return "READ_ONLY"
	case KeyStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type MonitorConfig struct {
	HealthInterval  time.Duration
	FailThreshold   int
	FailoverTimeout time.Duration // 0 disables the FAILED state
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		HealthInterval:  10 * time.Second,
		FailThreshold:   3,
		FailoverTimeout: 300 * time.Second,
	}
}

// HealthCheckFn probes the key device, e.g. with a no-op token call.
type HealthCheckFn func(ctx context.Context) error

// KeyMonitor probes a key device periodically and tracks whether signing
// should be attempted.
type KeyMonitor struct {
	cfg           MonitorConfig
	check         HealthCheckFn
	state         atomic.Int32
	mu            sync.Mutex
	failCount     int
	readOnlySince time.Time
	onFailed      func()
	now           func() time.Time
	logger        zerolog.Logger
}

// NewKeyMonitor creates a monitor in the NORMAL state. onFailed runs once, in
// its own goroutine, when the monitor enters FAILED.
func NewKeyMonitor(cfg MonitorConfig, check HealthCheckFn, onFailed func(), logger zerolog.Logger) *KeyMonitor {
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 1
	}
	m := &KeyMonitor{
		cfg:      cfg,
		check:    check,
		onFailed: onFailed,
		now:      time.Now,
		logger:   logger.With().Str("component", "key_monitor").Logger(),
	}
	m.state.Store(int32(KeyStateNormal))
	return m
}

func (m *KeyMonitor) State() KeyState {
	return KeyState(m.state.Load())
}

func (m *KeyMonitor) CanSign() bool {
	return m.State() == KeyStateNormal
}

// Run probes every HealthInterval until ctx is cancelled.
func (m *KeyMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe runs one health check and applies the resulting transition.
func (m *KeyMonitor) Probe(ctx context.Context) KeyState {
	err := m.check(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.State()
	if err == nil {
		if current != KeyStateNormal {
			m.logger.Info().Str("from", current.String()).Str("to", KeyStateNormal.String()).Msg("key device recovered")
		}
		m.failCount = 0
		m.state.Store(int32(KeyStateNormal))
		return KeyStateNormal
	}

	m.failCount++
	m.logger.Warn().Err(err).
		Int("fail_count", m.failCount).
		Int("threshold", m.cfg.FailThreshold).
		Msg("key device health check failed")

	switch {
	case current == KeyStateNormal && m.failCount >= m.cfg.FailThreshold:
		m.readOnlySince = m.now()
		m.state.Store(int32(KeyStateReadOnly))
		m.logger.Warn().Int("fail_count", m.failCount).Msg("key device unreachable, signing disabled")
	case current == KeyStateReadOnly && m.cfg.FailoverTimeout > 0 &&
		m.now().Sub(m.readOnlySince) >= m.cfg.FailoverTimeout:
		m.state.Store(int32(KeyStateFailed))
		m.logger.Error().Dur("timeout", m.cfg.FailoverTimeout).Msg("key device failover timeout exceeded")
		if m.onFailed != nil {
			go m.onFailed()
		}
	}
	return m.State()
}

// Guard wraps key so that its signers refuse to sign with KEY_UNAVAILABLE
// unless m reports NORMAL. Scheme negotiation is unaffected.
func Guard(key SigningKey, m *KeyMonitor) SigningKey {
	return &guardedKey{SigningKey: key, m: m}
}

type guardedKey struct {
	SigningKey
	m *KeyMonitor
}

func (g *guardedKey) ChooseScheme(offered []SignatureScheme) Signer {
	s := g.SigningKey.ChooseScheme(offered)
	if s == nil {
		return nil
	}
	return &guardedSigner{Signer: s, m: g.m}
}

func (g *guardedKey) Public() crypto.PublicKey {
	if pk, ok := g.SigningKey.(interface{ Public() crypto.PublicKey }); ok {
		return pk.Public()
	}
	return nil
}

type guardedSigner struct {
	Signer
	m *KeyMonitor
}

func (g *guardedSigner) Sign(message []byte) ([]byte, error) {
	if st := g.m.State(); st != KeyStateNormal {
		return nil, signerr(SIGN_ERR_KEY_UNAVAILABLE, st.String(), nil)
	}
	return g.Signer.Sign(message)
}
