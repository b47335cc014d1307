// Package connectivity watches network reachability and reports transitions to subscribers.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/shared"
)

const (
	defaultProbeAddr = "1.1.1.1:443"
	defaultInterval  = 5 * time.Second
	defaultTimeout   = 2 * time.Second
)

// ProbeFunc reports whether the network is reachable. A nil error means connected.
type ProbeFunc func(ctx context.Context) error

// DialProbe returns a probe that opens and closes a TCP connection to addr.
func DialProbe(addr string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context) error {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// Monitor polls a probe and notifies subscribers when the connected state changes.
//
// The monitor starts out connected, so the first report is only sent when a probe fails.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	mu        sync.Mutex
	connected bool
	subs      map[int]func(bool)
	next      int
}

// NewMonitor creates a monitor. A nil probe dials cfg.ProbeAddr.
func NewMonitor(cfg shared.ConnectivityConfig, probe ProbeFunc, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if probe == nil {
		addr := cfg.ProbeAddr
		if addr == "" {
			addr = defaultProbeAddr
		}
		probe = DialProbe(addr, timeout)
	}

	return &Monitor{
		probe:     probe,
		interval:  interval,
		timeout:   timeout,
		logger:    shared.WithLogger(logger, "component", "connectivity"),
		connected: true,
		subs:      make(map[int]func(bool)),
	}
}

// Subscribe registers fn for state changes. fn is never called from inside Subscribe.
func (m *Monitor) Subscribe(fn func(connected bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	id := m.next
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
		})
	}
}

// Connected reports the last known state.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Check probes once and notifies subscribers if the state changed. It returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.probe(ctx)
	connected := err == nil

	m.mu.Lock()
	changed := connected != m.connected
	m.connected = connected
	var subs []func(bool)
	if changed {
		subs = make([]func(bool), 0, len(m.subs))
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	if !changed {
		return connected
	}

	if connected {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost", "err", err)
	}
	for _, fn := range subs {
		fn(connected)
	}
	return connected
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			m.Check(ctx)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
