package search

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
)

const (
	backendInfo  = "info"
	backendTrack = "track"
)

// DispatchResult holds the handles a dispatch produced. Either may be nil.
type DispatchResult struct {
	InfoHandle  *models.QueryHandle
	TrackHandle *models.QueryHandle
	Failures    []*shared.DispatchFailedError
}

// Dispatcher submits a query to both backends and registers the handles they return.
type Dispatcher struct {
	info     InfoBackend
	track    TrackResolutionBackend
	registry *Registry
	logger   *log.Logger
}

// NewDispatcher wires the backends to registry. A nil backend is reported as unavailable on every dispatch.
func NewDispatcher(info InfoBackend, track TrackResolutionBackend, registry *Registry, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Dispatcher{
		info:     info,
		track:    track,
		registry: registry,
		logger:   shared.WithLogger(logger, "component", "dispatcher"),
	}
}

// Dispatch asks the info backend, then the track backend, to resolve text.
//
// A failing backend does not stop the other one. The returned error joins one [shared.DispatchFailedError] per failed
// backend and is nil when both succeeded. The caller must have cleared the registry beforehand.
func (d *Dispatcher) Dispatch(text string) (DispatchResult, error) {
	var result DispatchResult

	fail := func(backend string, err error) {
		d.logger.Warn("dispatch failed", "backend", backend, "err", err)
		result.Failures = append(result.Failures, &shared.DispatchFailedError{Backend: backend, Err: err})
	}

	if d.info == nil {
		fail(backendInfo, shared.ErrServiceUnavailable)
	} else if h, err := d.info.Resolve(text); err != nil {
		fail(backendInfo, err)
	} else if h != nil {
		d.registry.Add(h)
		result.InfoHandle = h
	}

	if d.track == nil {
		fail(backendTrack, shared.ErrServiceUnavailable)
	} else if h, err := d.track.Resolve(text, false); err != nil {
		fail(backendTrack, err)
	} else if h != nil {
		d.registry.Add(h)
		result.TrackHandle = h
	} else {
		d.logger.Debug("nothing to dispatch", "backend", backendTrack, "query", text)
	}

	if len(result.Failures) == 0 {
		return result, nil
	}

	errs := make([]error, len(result.Failures))
	for i, f := range result.Failures {
		errs[i] = f
	}
	return result, errors.Join(errs...)
}

// Cancel routes the cancellation of h to the backend that issued it.
func (d *Dispatcher) Cancel(h *models.QueryHandle) bool {
	if h == nil {
		return false
	}
	switch h.Backend() {
	case models.BackendInfo:
		return d.info != nil && d.info.Cancel(h)
	case models.BackendTrack:
		return d.track != nil && d.track.Cancel(h)
	default:
		d.logger.Debug("cannot route cancellation", "handle", h)
		return false
	}
}
