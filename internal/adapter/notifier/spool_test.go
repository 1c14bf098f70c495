package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/adapter/repository/wal"
	"github.com/V4T54L/trailwatch/internal/domain"
)

type failingSpool struct{}

func (failingSpool) Append(context.Context, ...domain.Finding) error {
	return errors.New("disk full")
}

func (failingSpool) Drain(context.Context, func([]domain.Finding) error) (int, error) {
	return 0, nil
}

func TestSpoolingNotifier_SpoolsAndRedelivers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	spool, err := wal.Open[domain.Finding](t.TempDir(), 1024, 1<<20, logger)
	require.NoError(t, err)
	defer spool.Close()

	m := metrics.NewAnalysisMetrics(prometheus.NewRegistry())
	w := &fakeWriter{err: errors.New("broker down")}
	n := NewSpoolingNotifier(NewKafkaNotifier(w, logger), spool, m, logger)

	f := sampleFinding()
	require.NoError(t, n.Notify(context.Background(), []domain.Finding{f}))
	assert.Empty(t, w.messages)
	assert.Positive(t, spool.Size())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("spooled")))

	// Broker still down: nothing leaves the spool.
	_, err = n.Redeliver(context.Background())
	require.Error(t, err)
	assert.Positive(t, spool.Size())

	w.err = nil
	delivered, err := n.Redeliver(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, w.messages, 1)
	assert.Equal(t, "StopLogging", string(w.messages[0].Key))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("redelivered")))

	delivered, err = n.Redeliver(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestSpoolingNotifier_PassThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	spool, err := wal.Open[domain.Finding](t.TempDir(), 1024, 1<<20, logger)
	require.NoError(t, err)
	defer spool.Close()

	w := &fakeWriter{}
	n := NewSpoolingNotifier(NewKafkaNotifier(w, logger), spool, nil, logger)

	require.NoError(t, n.Notify(context.Background(), []domain.Finding{sampleFinding()}))
	assert.Len(t, w.messages, 1)
	assert.Zero(t, spool.Size())
}

func TestSpoolingNotifier_SpoolFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := &fakeWriter{err: errors.New("broker down")}
	n := NewSpoolingNotifier(NewKafkaNotifier(w, logger), failingSpool{}, nil, logger)

	err := n.Notify(context.Background(), []domain.Finding{sampleFinding()})
	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "disk full")
}
