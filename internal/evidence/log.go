// Package evidence keeps the bounded, persisted log of captured frames.
package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/guardian-ai/internal/kv"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// Capacity is the maximum number of items kept; older ones are evicted.
const Capacity = 50

var (
	ErrNotFound              = errors.New("evidence: item not found")
	ErrInvalidTransition     = errors.New("evidence: invalid backup status transition")
	ErrImmutable             = errors.New("evidence: secured item cannot be removed")
	ErrInvalidClassification = errors.New("evidence: invalid classification")
	ErrNoImage               = errors.New("evidence: item has no image data")
)

var logTracer = otel.Tracer("guardian.internal.evidence")

// Log is the newest-first evidence list. Every mutation is written
// through to kv under KeyEvidence.
type Log struct {
	mu     sync.Mutex
	items  []Item
	lastID int64
	store  kv.Store
	logger *logging.Logger

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewLog returns an empty log backed by store.
func NewLog(store kv.Store, logger *logging.Logger) *Log {
	if logger == nil {
		logger = logging.Default()
	}
	return &Log{store: store, logger: logger, subs: make(map[int]chan struct{})}
}

// Load replaces the contents with the persisted list. Items left
// uploading by an interrupted run are marked failed.
func (l *Log) Load(ctx context.Context) error {
	data, err := l.store.Get(ctx, kv.KeyEvidence)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("evidence: load: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("evidence: decode: %w", err)
	}
	if len(items) > Capacity {
		items = items[:Capacity]
	}
	recovered := 0
	var lastID int64
	for i := range items {
		if items[i].BackupStatus == StatusUploading {
			items[i].BackupStatus = StatusFailed
			recovered++
		}
		if id, err := strconv.ParseInt(items[i].ID, 10, 64); err == nil && id > lastID {
			lastID = id
		}
	}

	l.mu.Lock()
	l.items = items
	l.lastID = lastID
	if recovered > 0 {
		l.persistLocked(ctx)
	}
	l.mu.Unlock()

	if recovered > 0 {
		l.logger.Warn("interrupted uploads marked failed", "count", recovered)
	}
	l.notify()
	return nil
}

// Prepend inserts item at the head, evicting the oldest beyond Capacity.
// An empty ID is derived from the capture timestamp and kept unique.
func (l *Log) Prepend(ctx context.Context, item Item) Item {
	l.mu.Lock()
	if item.ID == "" {
		id := item.Timestamp
		if id <= l.lastID {
			id = l.lastID + 1
		}
		item.ID = strconv.FormatInt(id, 10)
	}
	if id, err := strconv.ParseInt(item.ID, 10, 64); err == nil && id > l.lastID {
		l.lastID = id
	}
	if item.BackupStatus == "" {
		item.BackupStatus = StatusPending
	}
	items := make([]Item, 0, len(l.items)+1)
	items = append(items, item.Clone())
	items = append(items, l.items...)
	if len(items) > Capacity {
		items = items[:Capacity]
	}
	l.items = items
	l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return item.Clone()
}

// Get returns the item with id.
func (l *Log) Get(id string) (Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return Item{}, ErrNotFound
	}
	return l.items[i].Clone(), nil
}

// List returns a snapshot, newest first.
func (l *Log) List() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, len(l.items))
	for i, it := range l.items {
		out[i] = it.Clone()
	}
	return out
}

// Len is the number of items held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// PendingCount counts items not yet secured or failed.
func (l *Log) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, it := range l.items {
		if it.BackupStatus == StatusPending || it.BackupStatus == StatusUploading {
			n++
		}
	}
	return n
}

// ClaimNextPending moves the first pending item to uploading and returns
// it. ok is false when nothing is pending.
func (l *Log) ClaimNextPending(ctx context.Context) (Item, bool) {
	l.mu.Lock()
	idx := -1
	for i, it := range l.items {
		if it.BackupStatus == StatusPending {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return Item{}, false
	}
	l.items[idx].BackupStatus = StatusUploading
	claimed := l.items[idx].Clone()
	l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return claimed, true
}

// SetStatus moves an item's backup status forward.
func (l *Log) SetStatus(ctx context.Context, id string, status BackupStatus) error {
	return l.mutate(ctx, id, func(it *Item) error {
		if !it.BackupStatus.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.BackupStatus, status)
		}
		it.BackupStatus = status
		return nil
	})
}

// MarkShared flags an item as broadcast to the community.
func (l *Log) MarkShared(ctx context.Context, id string) error {
	return l.mutate(ctx, id, func(it *Item) error {
		it.IsShared = true
		return nil
	})
}

// SetSightings records the community sighting count.
func (l *Log) SetSightings(ctx context.Context, id string, sightings int) error {
	return l.mutate(ctx, id, func(it *Item) error {
		it.Sightings = sightings
		return nil
	})
}

// Classify stores the owner's verdict for an item.
func (l *Log) Classify(ctx context.Context, id string, c Classification) error {
	if !c.Valid() {
		return ErrInvalidClassification
	}
	return l.mutate(ctx, id, func(it *Item) error {
		it.Classification = c
		return nil
	})
}

// Remove deletes one item. Secured items stay: their cloud copy exists.
func (l *Log) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return ErrNotFound
	}
	if l.items[i].BackupStatus == StatusSecured {
		l.mu.Unlock()
		return ErrImmutable
	}
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return nil
}

// Clear empties the log and deletes the persisted key.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.items = nil
	err := l.store.Delete(ctx, kv.KeyEvidence)
	l.mu.Unlock()

	l.notify()
	if err != nil {
		return fmt.Errorf("evidence: clear: %w", err)
	}
	return nil
}

// Subscribe returns a channel that receives a signal after changes.
// Signals coalesce: a slow reader sees one pending signal, not one per change.
func (l *Log) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subs, id)
			l.subMu.Unlock()
		})
	}
}

func (l *Log) notify() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (l *Log) mutate(ctx context.Context, id string, fn func(*Item) error) error {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return ErrNotFound
	}
	next := l.items[i]
	if err := fn(&next); err != nil {
		l.mu.Unlock()
		return err
	}
	l.items[i] = next
	l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return nil
}

func (l *Log) indexLocked(id string) int {
	for i, it := range l.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the snapshot. Failures are logged only.
func (l *Log) persistLocked(ctx context.Context) {
	ctx, span := logTracer.Start(ctx, "evidence.persist")
	defer span.End()
	span.SetAttributes(attribute.Int("guardian.evidence.count", len(l.items)))

	items := l.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		span.RecordError(err)
		l.logger.Error("evidence marshal failed", "error", err)
		return
	}
	if err := l.store.Set(ctx, kv.KeyEvidence, data); err != nil {
		span.RecordError(err)
		l.logger.Error("evidence persist failed", "error", err, "count", len(items))
	}
}
