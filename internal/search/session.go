package search

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
)

// State is the lifecycle state of a [Session].
type State int

const (
	StateDetached State = iota
	StateIdle
	StateSearching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	default:
		return "detached"
	}
}

// Stats counts what a session did with the events it saw.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Stale    uint64 `json:"stale"`
	Searches uint64 `json:"searches"`
}

// Options configures a [Session]. Events is required; every other field is optional.
type Options struct {
	Info             InfoBackend
	Track            TrackResolutionBackend
	Events           EventSource
	Monitor          ConnectivityMonitor
	Consumer         Consumer
	RetryMinInterval time.Duration
	Logger           *log.Logger
}

// Session binds the registry, the aggregator, the dispatcher and the retry policy to one consumer.
//
// A new session is detached. Call [Session.Attach] before [Session.Search] and [Session.Close] when done.
type Session struct {
	mu          sync.Mutex
	state       State
	attached    bool // attached at least once
	failed      bool
	unsubscribe func()

	registry   *Registry
	aggregator *Aggregator
	dispatcher *Dispatcher
	retry      *RetryPolicy
	events     EventSource
	monitor    ConnectivityMonitor
	notifier   *notifier
	logger     *log.Logger

	pending  atomic.Pointer[string]
	accepted atomic.Uint64
	stale    atomic.Uint64
	searches atomic.Uint64
}

// NewSession creates a detached session.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &Session{
		state:      StateDetached,
		registry:   NewRegistry(),
		aggregator: NewAggregator(),
		events:     opts.Events,
		monitor:    opts.Monitor,
		notifier:   newNotifier(opts.Consumer),
		logger:     shared.WithLogger(logger, "component", "session"),
	}
	s.dispatcher = NewDispatcher(opts.Info, opts.Track, s.registry, logger)
	s.retry = NewRetryPolicy(s, opts.RetryMinInterval, logger)
	return s
}

// Search supersedes the current query with text.
//
// It returns [shared.ErrSessionDetached] when the session is detached. Dispatch failures are reported to the consumer
// and also returned, joined; they do not stop the backend that did start.
func (s *Session) Search(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDetached {
		return shared.ErrSessionDetached
	}

	s.cancelAllLocked(false)
	s.registry.Clear()
	s.aggregator.Reset(text)
	s.pending.Store(&text)
	s.failed = false
	s.searches.Add(1)
	s.state = StateSearching

	result, err := s.dispatcher.Dispatch(text)
	if err != nil {
		s.failed = true
	}
	s.logger.Debug("search dispatched", "query", text, "info", result.InfoHandle, "track", result.TrackHandle)

	snapshot := s.aggregator.Snapshot()
	s.notifier.enqueue(func(c Consumer) {
		c.OnSearchStarted(text)
		c.OnResultSetChanged(snapshot)
	})
	// Notices follow the start so consumers that reset on a new search keep them.
	for _, f := range result.Failures {
		s.notifier.enqueue(func(c Consumer) { c.OnNotice(f) })
	}
	return err
}

// cancelAllLocked cancels every registered handle. With remove set, handles whose cancellation took effect are
// unregistered.
func (s *Session) cancelAllLocked(remove bool) {
	for _, h := range s.registry.Snapshot() {
		if !s.dispatcher.Cancel(h) {
			s.logger.Debug("cancellation ineffective", "handle", h)
			continue
		}
		if remove {
			s.registry.Remove(h)
		}
	}
}

// OnEvent merges event when its source belongs to the current search and drops it otherwise.
func (s *Session) OnEvent(event models.PartialResultEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDetached || !s.registry.Contains(event.Source) {
		s.stale.Add(1)
		s.logger.Debug("stale event dropped", "source", event.Source, "category", event.Category)
		return
	}

	s.accepted.Add(1)
	if !s.aggregator.Apply(event) {
		return
	}
	snapshot := s.aggregator.Snapshot()
	s.notifier.enqueue(func(c Consumer) { c.OnResultSetChanged(snapshot) })
}

// OnQueryFinished handles the terminal signal of a backend query. A failed query is unregistered and reported; a
// successful one stays registered because it answered.
func (s *Session) OnQueryFinished(h *models.QueryHandle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDetached || !s.registry.Contains(h) {
		return
	}
	if err == nil {
		s.logger.Debug("query finished", "handle", h)
		return
	}

	s.registry.Remove(h)
	s.failed = true
	notice := fmt.Errorf("%s backend: %w", h.Backend(), err)
	s.logger.Warn("query failed", "handle", h, "err", err)
	s.notifier.enqueue(func(c Consumer) { c.OnNotice(notice) })
}

// Attach subscribes the session to its event source and connectivity monitor.
//
// On a re-attach the last snapshot is replayed to the consumer, and the pending query is searched again when no
// handle survived the detach. The first attach never searches.
func (s *Session) Attach() {
	s.mu.Lock()
	if s.state != StateDetached {
		s.mu.Unlock()
		return
	}

	if s.events != nil {
		s.unsubscribe = s.events.Subscribe(s)
	}

	reattach := s.attached
	s.attached = true
	pending := s.Pending()
	if pending == "" {
		s.state = StateIdle
	} else {
		s.state = StateSearching
	}

	resume := false
	if reattach {
		snapshot := s.aggregator.Snapshot()
		s.notifier.enqueue(func(c Consumer) { c.OnResultSetChanged(snapshot) })
		resume = pending != "" && s.registry.Len() == 0
	}
	// Subscribing under the lock keeps the event and monitor subscriptions in step with the state.
	s.retry.Attach(s.monitor)
	s.mu.Unlock()

	s.logger.Debug("attached", "reattach", reattach, "resume", resume)

	if resume {
		if err := s.Search(pending); err != nil {
			s.logger.Warn("resume search", "query", pending, "err", err)
		}
	}
}

// Detach cancels every running query and stops listening. Handles that could still be cancelled are dropped so a later
// [Session.Attach] knows to search again. Detaching twice is a no-op.
func (s *Session) Detach() {
	s.mu.Lock()
	if s.state == StateDetached {
		s.mu.Unlock()
		return
	}

	s.cancelAllLocked(true)
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.retry.Detach()
	s.state = StateDetached
	s.mu.Unlock()

	s.logger.Debug("detached", "remaining", s.registry.Len())
}

// Close detaches the session and waits for queued consumer callbacks to run. The session cannot be used afterwards.
func (s *Session) Close() {
	s.Detach()
	s.notifier.close()
}

// Retry exposes the session's connectivity retry policy.
func (s *Session) Retry() *RetryPolicy {
	return s.retry
}

func (s *Session) retryablePending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.Pending()
	if s.state == StateDetached || pending == "" {
		return "", false
	}
	return pending, s.registry.Len() == 0 || s.failed
}

// Snapshot returns a copy of the current aggregated result set.
func (s *Session) Snapshot() models.AggregatedResultSet {
	return s.aggregator.Snapshot()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the last text passed to [Session.Search], kept across detach and attach.
func (s *Session) Pending() string {
	if p := s.pending.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Session) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Stale:    s.stale.Load(),
		Searches: s.searches.Load(),
	}
}

// InFlight returns the number of registered query handles.
func (s *Session) InFlight() int {
	return s.registry.Len()
}
