// Package vault gates evidence access behind the owner's PIN.
package vault

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/guardian-ai/internal/observability/metrics"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// MaxFailedAttempts is the number of wrong PINs that trigger a lockout.
const MaxFailedAttempts = 3

var (
	ErrWrongPIN  = errors.New("vault: wrong PIN")
	ErrLockedOut = errors.New("vault: locked after repeated failures")
)

type settingsStore interface {
	Get() settings.Settings
	Update(ctx context.Context, fn func(*settings.Settings) error) (settings.Settings, error)
}

// Gate checks PINs against the stored vault PIN and keeps the failure
// count and lockout in settings, so a restart does not reset them.
type Gate struct {
	store   settingsStore
	lockout time.Duration
	metrics *metrics.GuardianMetrics
	logger  *logging.Logger
	now     func() time.Time
}

type Config struct {
	Lockout time.Duration
	Metrics *metrics.GuardianMetrics
	Logger  *logging.Logger
}

func NewGate(store settingsStore, cfg Config) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 5 * time.Minute
	}
	return &Gate{
		store:   store,
		lockout: cfg.Lockout,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// Status describes the gate without attempting anything.
type Status struct {
	Protected      bool   `json:"protected"`
	Locked         bool   `json:"locked"`
	LockedUntil    *int64 `json:"lockedUntil,omitempty"`
	FailedAttempts int    `json:"failedAttempts"`
}

func (g *Gate) Status() Status {
	s := g.store.Get()
	st := Status{Protected: s.HasPIN(), FailedAttempts: s.FailedAttempts}
	if s.LockoutUntil > g.now().UnixMilli() {
		until := s.LockoutUntil
		st.Locked = true
		st.LockedUntil = &until
	}
	return st
}

// Verify admits anyone when no PIN is set. Otherwise a wrong PIN counts
// toward the lockout, and the final allowed failure returns ErrLockedOut.
func (g *Gate) Verify(ctx context.Context, pin string) error {
	if !g.store.Get().HasPIN() {
		g.metrics.ObserveVaultAttempt("open")
		return nil
	}

	var result error
	_, err := g.store.Update(ctx, func(s *settings.Settings) error {
		now := g.now()
		if s.LockoutUntil > now.UnixMilli() {
			result = ErrLockedOut
			return nil
		}
		if s.LockoutUntil != 0 {
			s.LockoutUntil = 0
			s.FailedAttempts = 0
		}
		if pin == s.VaultPIN {
			s.FailedAttempts = 0
			result = nil
			return nil
		}
		s.FailedAttempts++
		result = ErrWrongPIN
		if s.FailedAttempts >= MaxFailedAttempts {
			s.LockoutUntil = now.Add(g.lockout).UnixMilli()
			result = ErrLockedOut
			g.logger.Warn("vault intruder alert: locking", "failed_attempts", s.FailedAttempts, "lockout", g.lockout.String())
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case result == nil:
		g.metrics.ObserveVaultAttempt("granted")
	case errors.Is(result, ErrLockedOut):
		g.metrics.ObserveVaultAttempt("locked")
	default:
		g.metrics.ObserveVaultAttempt("denied")
	}
	return result
}
