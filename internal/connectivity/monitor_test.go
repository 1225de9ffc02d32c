package connectivity

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewMonitor(Config{
		BaseURL:  "https://story-api.example.com/v1",
		Interval: time.Minute,
	}, logger)
	require.NoError(t, err)
	return m
}

func TestNewMonitor_DerivesProbeAddress(t *testing.T) {
	m := newTestMonitor(t)
	assert.Equal(t, "story-api.example.com:443", m.address)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewMonitor(Config{BaseURL: "http://localhost:8080", Interval: time.Minute}, logger)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", m.address)
}

func TestProbe_TransitionsAndNotifies(t *testing.T) {
	m := newTestMonitor(t)

	dialErr := error(nil)
	m.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		return nil, dialErr
	}

	var events []bool
	unsubscribe := m.OnChange(func(online bool) {
		events = append(events, online)
	})

	// Reachable probe keeps the assumed-online state, no event.
	m.probe()
	assert.True(t, m.IsOnline())
	assert.Empty(t, events)

	// Losing the host flips the state exactly once.
	dialErr = errors.New("connection refused")
	m.probe()
	m.probe()
	assert.False(t, m.IsOnline())
	assert.Equal(t, []bool{false}, events)

	// Regaining it flips back.
	dialErr = nil
	m.probe()
	assert.True(t, m.IsOnline())
	assert.Equal(t, []bool{false, true}, events)

	// After unsubscribing no further events arrive.
	unsubscribe()
	dialErr = errors.New("connection refused")
	m.probe()
	assert.Equal(t, []bool{false, true}, events)
}

func TestOnChange_UnsubscribeIsIdempotent(t *testing.T) {
	m := newTestMonitor(t)

	unsubscribe := m.OnChange(func(bool) {})
	unsubscribe()
	unsubscribe()
}
