// Package notify hands "will be deleted soon" notices to the component that
// renders and delivers them. Rendering and delivery are not part of the
// engine; a Notifier only records that a notice is due.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/lethe/pkg/retention"
)

// Sink names accepted by New.
const (
	SinkLog    = "log"
	SinkOutbox = "outbox"
)

// Notifier receives one notice per record that entered its notification
// window. Dispatch reports false when the notice was already dispatched
// earlier and nothing new happened.
type Notifier interface {
	Dispatch(ctx context.Context, notice retention.Notice) (bool, error)
}

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: slog.Default().With("component", "retention.notify")}
}

// Dispatch implements Notifier.
func (n *LogNotifier) Dispatch(ctx context.Context, notice retention.Notice) (bool, error) {
	n.logger.InfoContext(ctx, "deletion notice due",
		"category", notice.Category,
		"record_id", notice.RecordID,
		"deletion_date", notice.DeletionDate.Format(time.RFC3339),
	)
	return true, nil
}

// OutboxNotifier queues notices in the store for an external mailer.
// Queueing is idempotent per category, record and deletion date, so daily
// notification checks do not send the same notice twice.
type OutboxNotifier struct {
	outbox retention.NoticeOutbox
	now    func() time.Time
	logger *slog.Logger
}

// NewOutboxNotifier creates a notifier writing into outbox.
func NewOutboxNotifier(outbox retention.NoticeOutbox, now func() time.Time) *OutboxNotifier {
	if now == nil {
		now = time.Now
	}
	return &OutboxNotifier{
		outbox: outbox,
		now:    now,
		logger: slog.Default().With("component", "retention.notify"),
	}
}

// Dispatch implements Notifier.
func (n *OutboxNotifier) Dispatch(ctx context.Context, notice retention.Notice) (bool, error) {
	queued, err := n.outbox.EnqueueNotice(ctx, notice, n.now().UTC())
	if err != nil {
		return false, fmt.Errorf("enqueue notice for %s/%s: %w", notice.Category, notice.RecordID, err)
	}
	if queued {
		n.logger.DebugContext(ctx, "deletion notice queued",
			"category", notice.Category,
			"record_id", notice.RecordID,
		)
	}
	return queued, nil
}

// New returns the notifier selected by sink.
func New(sink string, outbox retention.NoticeOutbox, now func() time.Time) (Notifier, error) {
	switch sink {
	case SinkLog, "":
		return NewLogNotifier(), nil
	case SinkOutbox:
		if outbox == nil {
			return nil, retention.NewConfigurationError("notifications.sink", fmt.Errorf("store does not provide a notice outbox"))
		}
		return NewOutboxNotifier(outbox, now), nil
	default:
		return nil, retention.NewConfigurationError("notifications.sink",
			fmt.Errorf("unsupported sink %q (valid: log, outbox)", sink))
	}
}
