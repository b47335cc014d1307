package search

import (
	"github.com/desertthunder/fedsearch/internal/events"
	"github.com/desertthunder/fedsearch/internal/models"
)

// InfoBackend resolves artists, albums and users. Resolve returns immediately; results arrive on the event bus.
type InfoBackend interface {
	Resolve(text string) (*models.QueryHandle, error)
	// Cancel stops the query behind h. It reports false when the query already finished or is unknown.
	Cancel(h *models.QueryHandle) bool
}

// TrackResolutionBackend resolves tracks. Resolve returns (nil, nil) when there is nothing to dispatch.
type TrackResolutionBackend interface {
	Resolve(text string, interactive bool) (*models.QueryHandle, error)
	Cancel(h *models.QueryHandle) bool
}

// ConnectivityMonitor reports network reachability changes. Implementations must not call fn from inside Subscribe.
type ConnectivityMonitor interface {
	Subscribe(fn func(connected bool)) (unsubscribe func())
}

// Consumer receives session notifications on the session's notifier goroutine.
type Consumer interface {
	OnSearchStarted(text string)
	OnResultSetChanged(snapshot models.AggregatedResultSet)
	OnNotice(err error)
}

// EventSource is where a session subscribes for backend events. [events.Bus] implements it.
type EventSource interface {
	Subscribe(sink events.Sink) (unsubscribe func())
}

type nopConsumer struct{}

func (nopConsumer) OnSearchStarted(string)                        {}
func (nopConsumer) OnResultSetChanged(models.AggregatedResultSet) {}
func (nopConsumer) OnNotice(error)                                {}
