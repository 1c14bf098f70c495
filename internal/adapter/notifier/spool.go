package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/domain"
)

// Spool is a durable queue of undelivered findings. *wal.Log[domain.Finding]
// satisfies it.
type Spool interface {
	Append(ctx context.Context, findings ...domain.Finding) error
	Drain(ctx context.Context, fn func([]domain.Finding) error) (int, error)
}

// SpoolingNotifier wraps a notifier and keeps findings it could not deliver in
// a spool until Redeliver succeeds.
type SpoolingNotifier struct {
	next    domain.Notifier
	spool   Spool
	metrics *metrics.AnalysisMetrics
	logger  *slog.Logger
}

// NewSpoolingNotifier creates a SpoolingNotifier. m may be nil.
func NewSpoolingNotifier(next domain.Notifier, spool Spool, m *metrics.AnalysisMetrics, logger *slog.Logger) *SpoolingNotifier {
	return &SpoolingNotifier{
		next:    next,
		spool:   spool,
		metrics: m,
		logger:  logger.With("component", "spooling_notifier"),
	}
}

// Notify delivers findings, spooling them when the wrapped notifier fails. An
// error is returned only when the findings could be neither delivered nor
// spooled.
func (n *SpoolingNotifier) Notify(ctx context.Context, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	err := n.next.Notify(ctx, findings)
	if err == nil {
		return nil
	}

	if spoolErr := n.spool.Append(context.WithoutCancel(ctx), findings...); spoolErr != nil {
		return errors.Join(err, fmt.Errorf("failed to spool findings: %w", spoolErr))
	}
	n.logger.Warn("Notifier unavailable, findings spooled", "count", len(findings), "error", err)
	n.count("spooled", len(findings))
	return nil
}

// Redeliver sends every spooled finding to the wrapped notifier. Findings stay
// spooled if delivery fails.
func (n *SpoolingNotifier) Redeliver(ctx context.Context) (int, error) {
	delivered, err := n.spool.Drain(ctx, func(findings []domain.Finding) error {
		return n.next.Notify(ctx, findings)
	})
	if err != nil {
		return 0, err
	}
	n.count("redelivered", delivered)
	return delivered, nil
}

// Run calls Redeliver every interval until ctx is done.
func (n *SpoolingNotifier) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			delivered, err := n.Redeliver(ctx)
			if err != nil {
				n.logger.Warn("Redelivery of spooled findings failed", "error", err)
				continue
			}
			if delivered > 0 {
				n.logger.Info("Redelivered spooled findings", "count", delivered)
			}
		}
	}
}

func (n *SpoolingNotifier) count(status string, c int) {
	if n.metrics != nil && c > 0 {
		n.metrics.Notifications.WithLabelValues(status).Add(float64(c))
	}
}
