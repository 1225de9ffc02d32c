package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storysync/internal/domain"
)

type stubRefresher struct {
	calls chan struct{}
	err   error
}

func (s *stubRefresher) Refresh(ctx context.Context) (*domain.RefreshStats, error) {
	s.calls <- struct{}{}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.RefreshStats{}, nil
}

type stubSignal struct {
	fn func(online bool)
}

func (s *stubSignal) OnChange(fn func(online bool)) func() {
	s.fn = fn
	return func() {}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForCall(t *testing.T, calls chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func TestScheduler_RefreshesOnStartAndInterval(t *testing.T) {
	refresher := &stubRefresher{calls: make(chan struct{}, 8)}
	sched := NewScheduler(refresher, nil, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	waitForCall(t, refresher.calls) // immediate refresh
	waitForCall(t, refresher.calls) // first tick

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_RefreshesWhenConnectivityReturns(t *testing.T) {
	refresher := &stubRefresher{calls: make(chan struct{}, 8)}
	signal := &stubSignal{}
	sched := NewScheduler(refresher, signal, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	waitForCall(t, refresher.calls) // immediate refresh
	require.NotNil(t, signal.fn)

	// Going offline does not trigger anything; coming back does.
	signal.fn(false)
	signal.fn(true)
	waitForCall(t, refresher.calls)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_ToleratesOfflineRefreshes(t *testing.T) {
	refresher := &stubRefresher{calls: make(chan struct{}, 8), err: domain.ErrOffline}
	sched := NewScheduler(refresher, nil, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	waitForCall(t, refresher.calls)
	waitForCall(t, refresher.calls)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
