package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/search"
	"github.com/desertthunder/fedsearch/internal/shared"
)

const defaultQuiet = 3 * time.Second

// SessionFactory builds a detached session reporting to c.
type SessionFactory func(c search.Consumer) *search.Session

type sseMessage struct {
	event string
	data  any
}

// eventStream is the session consumer of one request. Sends give up once the request is over.
type eventStream struct {
	ctx      context.Context
	stopped  chan struct{}
	messages chan sseMessage
}

func newEventStream(ctx context.Context) *eventStream {
	return &eventStream{ctx: ctx, stopped: make(chan struct{}), messages: make(chan sseMessage, 16)}
}

func (s *eventStream) send(m sseMessage) {
	select {
	case s.messages <- m:
	case <-s.stopped:
	case <-s.ctx.Done():
	}
}

func (s *eventStream) stop() { close(s.stopped) }

func (s *eventStream) OnSearchStarted(text string) {
	s.send(sseMessage{event: "started", data: map[string]string{"query": text}})
}

func (s *eventStream) OnResultSetChanged(set models.AggregatedResultSet) {
	s.send(sseMessage{event: "results", data: set})
}

func (s *eventStream) OnNotice(err error) {
	s.send(sseMessage{event: "notice", data: map[string]string{"error": err.Error()}})
}

// SearchHandler streams one search session per request as Server-Sent Events.
type SearchHandler struct {
	newSession SessionFactory
	quiet      time.Duration
	logger     *log.Logger
}

// NewSearchHandler creates the handler. A non-positive quiet period defaults to 3s.
func NewSearchHandler(factory SessionFactory, quiet time.Duration, logger *log.Logger) *SearchHandler {
	if quiet <= 0 {
		quiet = defaultQuiet
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SearchHandler{
		newSession: factory,
		quiet:      quiet,
		logger:     shared.WithLogger(logger, "component", "http"),
	}
}

func (h *SearchHandler) Routes() []string {
	return []string{"/search"}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	text := shared.NormalizeQuery(r.URL.Query().Get("q"))
	if text == "" {
		http.Error(w, "Missing query parameter q", http.StatusBadRequest)
		return
	}

	quiet := h.quiet
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "Invalid wait duration", http.StatusBadRequest)
			return
		}
		quiet = d
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream := newEventStream(r.Context())
	session := h.newSession(stream)
	session.Attach()
	defer session.Close()
	defer stream.stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := session.Search(text); err != nil {
		h.logger.Debug("search dispatched with failures", "query", text, "err", err)
	}

	timer := time.NewTimer(quiet)
	defer timer.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("client went away", "query", text)
			return
		case m := <-stream.messages:
			if err := writeEvent(w, m); err != nil {
				h.logger.Warn("failed to write event", "err", err)
				return
			}
			flusher.Flush()
			timer.Reset(quiet)
		case <-timer.C:
			if err := writeEvent(w, sseMessage{event: "done", data: session.Snapshot()}); err != nil {
				h.logger.Warn("failed to write event", "err", err)
			}
			flusher.Flush()
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, m sseMessage) error {
	data, err := json.Marshal(m.data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", m.event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.event, data)
	return err
}
