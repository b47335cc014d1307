package testing

import (
	"errors"
	"sync"

	"github.com/desertthunder/fedsearch/internal/models"
)

// RecordingConsumer records session notifications. Safe for concurrent use.
type RecordingConsumer struct {
	mu       sync.Mutex
	started  []string
	sets     []models.AggregatedResultSet
	notices  []error
	sequence []string
	OnChange func(models.AggregatedResultSet)
}

func (r *RecordingConsumer) OnSearchStarted(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, text)
	r.sequence = append(r.sequence, "started:"+text)
}

func (r *RecordingConsumer) OnResultSetChanged(set models.AggregatedResultSet) {
	r.mu.Lock()
	r.sets = append(r.sets, set)
	r.sequence = append(r.sequence, "changed")
	hook := r.OnChange
	r.mu.Unlock()

	if hook != nil {
		hook(set)
	}
}

func (r *RecordingConsumer) OnNotice(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, err)
	r.sequence = append(r.sequence, "notice")
}

func (r *RecordingConsumer) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func (r *RecordingConsumer) Notices() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.notices...)
}

// Sequence lists the notifications in delivery order ("started:<text>", "changed", "notice").
func (r *RecordingConsumer) Sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sequence...)
}

// Changes returns how many result sets were delivered.
func (r *RecordingConsumer) Changes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

// Last returns the most recent result set, or the zero value.
func (r *RecordingConsumer) Last() models.AggregatedResultSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sets) == 0 {
		return models.AggregatedResultSet{}
	}
	return r.sets[len(r.sets)-1]
}

// FakeBackend implements both search backend interfaces. It never publishes; tests publish on a bus themselves.
type FakeBackend struct {
	Kind models.BackendKind
	Err  error
	// Empty makes Resolve return (nil, nil), as a track backend does for blank text.
	Empty bool

	mu          sync.Mutex
	handles     []*models.QueryHandle
	queries     []string
	interactive []bool
	cancelled   map[*models.QueryHandle]bool
	finished    map[*models.QueryHandle]bool
}

func NewFakeInfoBackend() *FakeBackend  { return &FakeBackend{Kind: models.BackendInfo} }
func NewFakeTrackBackend() *FakeBackend { return &FakeBackend{Kind: models.BackendTrack} }

func (f *FakeBackend) resolve(text string, interactive bool) (*models.QueryHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, text)
	f.interactive = append(f.interactive, interactive)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Empty {
		return nil, nil
	}
	h := models.NewQueryHandle(f.Kind)
	f.handles = append(f.handles, h)
	return h, nil
}

// Resolve satisfies the track backend interface. Use [InfoAdapter] for the info backend.
func (f *FakeBackend) Resolve(text string, interactive bool) (*models.QueryHandle, error) {
	return f.resolve(text, interactive)
}

// Cancel reports true for handles that were issued and not yet marked finished.
func (f *FakeBackend) Cancel(h *models.QueryHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelled == nil {
		f.cancelled = make(map[*models.QueryHandle]bool)
	}
	if f.finished[h] || f.cancelled[h] || !f.issued(h) {
		return false
	}
	f.cancelled[h] = true
	return true
}

func (f *FakeBackend) issued(h *models.QueryHandle) bool {
	for _, issued := range f.handles {
		if issued == h {
			return true
		}
	}
	return false
}

// MarkFinished makes later cancellations of h ineffective.
func (f *FakeBackend) MarkFinished(h *models.QueryHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished == nil {
		f.finished = make(map[*models.QueryHandle]bool)
	}
	f.finished[h] = true
}

func (f *FakeBackend) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

func (f *FakeBackend) Handles() []*models.QueryHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.QueryHandle(nil), f.handles...)
}

// LastHandle returns the most recently issued handle or nil.
func (f *FakeBackend) LastHandle() *models.QueryHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.handles) == 0 {
		return nil
	}
	return f.handles[len(f.handles)-1]
}

func (f *FakeBackend) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *FakeBackend) Interactive() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.interactive...)
}

func (f *FakeBackend) Cancelled(h *models.QueryHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[h]
}

// InfoAdapter exposes a [FakeBackend] through the single-argument info backend Resolve.
type InfoAdapter struct{ *FakeBackend }

func (a InfoAdapter) Resolve(text string) (*models.QueryHandle, error) {
	return a.resolve(text, false)
}

// FakeMonitor is a connectivity monitor driven by the test.
type FakeMonitor struct {
	mu   sync.Mutex
	subs map[int]func(bool)
	next int
}

func (m *FakeMonitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[int]func(bool))
	}
	m.next++
	id := m.next
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Set reports connected to every subscriber synchronously.
func (m *FakeMonitor) Set(connected bool) {
	m.mu.Lock()
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(connected)
	}
}

func (m *FakeMonitor) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// ErrFake is returned by fakes configured to fail.
var ErrFake = errors.New("fake failure")

// RecordingPublisher records what a backend publishes. Safe for concurrent use.
type RecordingPublisher struct {
	mu       sync.Mutex
	events   []models.PartialResultEvent
	finished map[*models.QueryHandle][]error
}

func (p *RecordingPublisher) Publish(event models.PartialResultEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *RecordingPublisher) Finish(h *models.QueryHandle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished == nil {
		p.finished = make(map[*models.QueryHandle][]error)
	}
	p.finished[h] = append(p.finished[h], err)
}

// Events returns the published events of h in order.
func (p *RecordingPublisher) Events(h *models.QueryHandle) []models.PartialResultEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PartialResultEvent
	for _, e := range p.events {
		if e.Source == h {
			out = append(out, e)
		}
	}
	return out
}

// Finished returns every error h was finished with. A well-behaved backend finishes once.
func (p *RecordingPublisher) Finished(h *models.QueryHandle) []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.finished[h]...)
}
