package search

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/shared"
)

// retryTarget is the part of a session the retry policy drives.
type retryTarget interface {
	// retryablePending returns the pending query when the session is attached and needs a retry.
	retryablePending() (string, bool)
	Search(text string) error
}

// RetryPolicy re-issues the pending query when connectivity is restored.
type RetryPolicy struct {
	target      retryTarget
	minInterval time.Duration
	now         func() time.Time
	logger      *log.Logger

	mu          sync.Mutex
	last        time.Time
	unsubscribe func()
}

// NewRetryPolicy creates a policy for target. Retries closer together than minInterval are ignored; zero disables the
// debounce.
func NewRetryPolicy(target retryTarget, minInterval time.Duration, logger *log.Logger) *RetryPolicy {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RetryPolicy{
		target:      target,
		minInterval: minInterval,
		now:         time.Now,
		logger:      shared.WithLogger(logger, "component", "retry"),
	}
}

// Attach subscribes the policy to m. Attaching twice keeps the first subscription.
func (p *RetryPolicy) Attach(m ConnectivityMonitor) {
	if m == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		return
	}
	p.unsubscribe = m.Subscribe(p.onConnectivity)
}

// Detach drops the monitor subscription, if any.
func (p *RetryPolicy) Detach() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (p *RetryPolicy) onConnectivity(connected bool) {
	if !connected {
		p.logger.Debug("connectivity lost")
		return
	}
	p.OnConnectivityRestored()
}

// OnConnectivityRestored searches the pending query again if the session needs it. It reports whether a search was
// issued.
func (p *RetryPolicy) OnConnectivityRestored() bool {
	pending, ok := p.target.retryablePending()
	if !ok {
		p.logger.Debug("connectivity restored, nothing to retry")
		return false
	}

	p.mu.Lock()
	now := p.now()
	if p.minInterval > 0 && !p.last.IsZero() && now.Sub(p.last) < p.minInterval {
		p.mu.Unlock()
		p.logger.Debug("retry debounced", "query", pending, "since", now.Sub(p.last))
		return false
	}
	p.last = now
	p.mu.Unlock()

	p.logger.Info("connectivity restored, retrying", "query", pending)
	if err := p.target.Search(pending); err != nil {
		p.logger.Warn("retry search", "query", pending, "err", err)
	}
	return true
}
