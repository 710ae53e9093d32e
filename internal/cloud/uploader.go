package cloud

import (
	"context"
	"time"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// Uploader secures one evidence item in remote storage.
type Uploader interface {
	Upload(ctx context.Context, item evidence.Item, contacts []settings.Contact) error
}

// UploaderFunc adapts a function to Uploader.
type UploaderFunc func(ctx context.Context, item evidence.Item, contacts []settings.Contact) error

func (f UploaderFunc) Upload(ctx context.Context, item evidence.Item, contacts []settings.Contact) error {
	return f(ctx, item, contacts)
}

// Locator reports where an uploader stored an item.
type Locator interface {
	Location(item evidence.Item) string
}

// SimulatedUploader stands in for a storage backend: it waits and succeeds.
type SimulatedUploader struct {
	latency time.Duration
	logger  *logging.Logger
}

func NewSimulatedUploader(latency time.Duration, logger *logging.Logger) *SimulatedUploader {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimulatedUploader{latency: latency, logger: logger}
}

func (u *SimulatedUploader) Upload(ctx context.Context, item evidence.Item, contacts []settings.Contact) error {
	if err := sleep(ctx, u.latency); err != nil {
		return err
	}
	u.logger.Info("simulated upload complete", "evidence_id", item.ID, "contacts", len(contacts))
	return nil
}

// Notifier alerts people once an item is secured.
type Notifier interface {
	NotifyEvidenceSecured(ctx context.Context, item evidence.Item, location string, contacts []settings.Contact) error
}

// NotifyingUploader uploads through next and then alerts the owner and
// contacts. Notification failures are logged; the upload still counts.
type NotifyingUploader struct {
	next     Uploader
	notifier Notifier
	logger   *logging.Logger
}

func NewNotifyingUploader(next Uploader, notifier Notifier, logger *logging.Logger) *NotifyingUploader {
	if logger == nil {
		logger = logging.Default()
	}
	return &NotifyingUploader{next: next, notifier: notifier, logger: logger}
}

func (u *NotifyingUploader) Upload(ctx context.Context, item evidence.Item, contacts []settings.Contact) error {
	if err := u.next.Upload(ctx, item, contacts); err != nil {
		return err
	}
	if u.notifier == nil {
		return nil
	}
	location := ""
	if loc, ok := u.next.(Locator); ok {
		location = loc.Location(item)
	}
	if err := u.notifier.NotifyEvidenceSecured(ctx, item, location, contacts); err != nil {
		u.logger.Warn("evidence secured but contact alert failed", "evidence_id", item.ID, "error", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
