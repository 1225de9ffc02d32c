package connectivity

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"
)

// Monitor tracks whether the remote API host is reachable. It probes on an
// interval and notifies subscribers on online/offline transitions. It
// satisfies the orchestrator's Connectivity interface.
type Monitor struct {
	address  string
	interval time.Duration
	timeout  time.Duration
	dial     func(network, address string, timeout time.Duration) (net.Conn, error)
	logger   *slog.Logger

	mu          sync.Mutex
	online      bool
	nextID      int
	subscribers map[int]func(online bool)
}

// Config holds monitor configuration. BaseURL is the API base the probe
// targets; the probe dials its host on port 443 (or the explicit port).
type Config struct {
	BaseURL  string
	Interval time.Duration
	Timeout  time.Duration
}

func NewMonitor(cfg Config, logger *slog.Logger) (*Monitor, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Monitor{
		address:     host,
		interval:    cfg.Interval,
		timeout:     timeout,
		dial:        net.DialTimeout,
		logger:      logger.With("component", "connectivity"),
		online:      true, // assume reachable until the first probe says otherwise
		subscribers: make(map[int]func(online bool)),
	}, nil
}

// Start probes immediately, then on every interval tick until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.probe()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Monitor) probe() {
	conn, err := m.dial("tcp", m.address, m.timeout)
	if conn != nil {
		_ = conn.Close()
	}
	m.setOnline(err == nil)
}

// IsOnline returns the result of the most recent probe.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers fn for transitions. The returned func unsubscribes;
// calling it more than once is harmless. Callbacks run on the probe
// goroutine and must not block.
func (m *Monitor) OnChange(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	fns := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)

	for _, fn := range fns {
		fn(online)
	}
}
