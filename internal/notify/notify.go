// Package notify fans terminal estimate outcomes out to interested parties.
// Delivery is best effort: a failed notification never changes the
// stored estimate or the fate of the job that produced it.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/platewise/api/internal/model"
)

// Notifier delivers one terminal outcome
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Func adapts a plain function to Notifier
type Func func(ctx context.Context, n model.Notification) error

func (f Func) Notify(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// Multi delivers to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, nt := range m {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort bounds each delivery with a timeout and swallows failures after logging them.
type BestEffort struct {
	next    Notifier
	timeout time.Duration
	logger  *zap.Logger
}

func NewBestEffort(next Notifier, timeout time.Duration, logger *zap.Logger) *BestEffort {
	return &BestEffort{next: next, timeout: timeout, logger: logger}
}

// Notify never returns an error. The parent's cancellation is ignored so a
// shutting-down worker still gets its timeout's worth of delivery.
func (b *BestEffort) Notify(ctx context.Context, n model.Notification) error {
	ctx = context.WithoutCancel(ctx)
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	if err := b.next.Notify(ctx, n); err != nil {
		b.logger.Warn("notification delivery failed",
			zap.String("estimate_id", n.EstimateID.String()),
			zap.String("status", string(n.Status)),
			zap.Error(err),
		)
	}
	return nil
}

// Collect drops nil entries, including typed nils from optional
// constructors, and returns the rest as a Multi
func Collect(notifiers ...Notifier) Multi {
	out := make(Multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		if t, ok := n.(*Telegram); ok && t == nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
