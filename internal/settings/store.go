package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfman30/guardian-ai/internal/kv"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// Store owns the live settings and writes every change through to kv.
type Store struct {
	mu      sync.RWMutex
	kv      kv.Store
	logger  *logging.Logger
	current Settings
}

// NewStore starts from Defaults; call Load to read the saved record.
func NewStore(store kv.Store, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{kv: store, logger: logger, current: Defaults()}
}

// Load replaces the live settings with the saved record. A missing or
// unreadable record leaves the defaults in place.
func (s *Store) Load(ctx context.Context) Settings {
	data, err := s.kv.Get(ctx, kv.KeySettings)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("settings load failed", "error", err)
		}
		return s.Get()
	}
	decoded, dropped, err := decode(data)
	if err != nil {
		s.logger.Warn("settings record unreadable, using defaults", "error", err)
	}
	for _, c := range dropped {
		s.logger.Warn("dropping saved contact that fails validation", "contact_id", c.ID, "name", c.Name)
	}
	s.mu.Lock()
	s.current = decoded
	s.mu.Unlock()
	return decoded.Clone()
}

// Get returns a copy of the live settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update applies fn to a copy, validates it, persists it and makes it live.
// Nothing changes when fn or validation fails.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.Clone()
	if err := fn(&next); err != nil {
		return s.current.Clone(), err
	}
	next.Version = CurrentVersion
	if err := next.Validate(); err != nil {
		return s.current.Clone(), err
	}
	s.current = next
	s.persistLocked(ctx)
	return next.Clone(), nil
}

// persistLocked logs write failures; the in-memory copy stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.current)
	if err != nil {
		s.logger.Error("settings marshal failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, kv.KeySettings, data); err != nil {
		s.logger.Error("settings persist failed", "error", fmt.Errorf("settings: persist: %w", err))
	}
}
