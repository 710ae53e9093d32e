// Package upload drains pending evidence to cloud storage, one item at a time.
package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/guardian-ai/internal/cloud"
	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/observability/metrics"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

type evidenceLog interface {
	ClaimNextPending(ctx context.Context) (evidence.Item, bool)
	SetStatus(ctx context.Context, id string, status evidence.BackupStatus) error
	Subscribe() (<-chan struct{}, func())
}

// Queue uploads pending items sequentially. A single drain runs at a
// time, so at most one item is ever uploading.
type Queue struct {
	log         evidenceLog
	uploader    cloud.Uploader
	contacts    func() []settings.Contact
	metrics     *metrics.GuardianMetrics
	logger      *logging.Logger
	maxAttempts int
	baseDelay   time.Duration

	drainMu sync.Mutex
}

func NewQueue(log evidenceLog, uploader cloud.Uploader, contacts func() []settings.Contact, logger *logging.Logger) *Queue {
	if logger == nil {
		logger = logging.Default()
	}
	if contacts == nil {
		contacts = func() []settings.Contact { return nil }
	}
	return &Queue{
		log:         log,
		uploader:    uploader,
		contacts:    contacts,
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
	}
}

func (q *Queue) WithMaxAttempts(n int) *Queue {
	if n > 0 {
		q.maxAttempts = n
	}
	return q
}

func (q *Queue) WithBaseDelay(d time.Duration) *Queue {
	if d >= 0 {
		q.baseDelay = d
	}
	return q
}

func (q *Queue) WithMetrics(m *metrics.GuardianMetrics) *Queue {
	q.metrics = m
	return q
}

// Run drains once, then again after every change to the log, until ctx
// is done.
func (q *Queue) Run(ctx context.Context) {
	changes, unsubscribe := q.log.Subscribe()
	defer unsubscribe()

	q.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			q.Drain(ctx)
		}
	}
}

// Drain uploads pending items until none remain or ctx is done. It
// returns the number of items secured.
func (q *Queue) Drain(ctx context.Context) int {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	secured := 0
	for ctx.Err() == nil {
		item, ok := q.log.ClaimNextPending(ctx)
		if !ok {
			break
		}
		status := q.process(ctx, item)
		if err := q.log.SetStatus(context.WithoutCancel(ctx), item.ID, status); err != nil {
			if errors.Is(err, evidence.ErrNotFound) {
				q.logger.Info("evidence removed during upload", "evidence_id", item.ID)
				continue
			}
			q.logger.Error("failed to record upload result", "evidence_id", item.ID, "status", status, "error", err)
			continue
		}
		q.metrics.ObserveUpload(string(status))
		if status == evidence.StatusSecured {
			secured++
		}
	}
	return secured
}

func (q *Queue) process(ctx context.Context, item evidence.Item) evidence.BackupStatus {
	var err error
	for attempt := 0; attempt < q.maxAttempts; attempt++ {
		if attempt > 0 {
			if waitErr := wait(ctx, q.nextDelay(attempt-1)); waitErr != nil {
				err = waitErr
				break
			}
		}
		err = q.uploader.Upload(ctx, item, q.contacts())
		if err == nil {
			q.logger.Info("evidence secured", "evidence_id", item.ID, "attempts", attempt+1)
			return evidence.StatusSecured
		}
		q.logger.Warn("evidence upload failed", "evidence_id", item.ID, "attempt", attempt+1, "error", err)
	}
	q.logger.Error("evidence upload abandoned", "evidence_id", item.ID, "error", err)
	return evidence.StatusFailed
}

func (q *Queue) nextDelay(attempts int) time.Duration {
	delay := q.baseDelay * time.Duration(1<<attempts)
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
