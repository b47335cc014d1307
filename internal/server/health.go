package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// ConnectivityReporter reports the last known network state.
type ConnectivityReporter interface {
	Connected() bool
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string   `json:"status"`
	Connected bool     `json:"connected"`
	Providers []string `json:"providers"`
	Resolvers []string `json:"resolvers"`
	Started   string   `json:"started"`
}

// HealthHandler reports connectivity and the configured backends.
type HealthHandler struct {
	monitor   ConnectivityReporter
	providers []string
	resolvers []string
	started   time.Time
}

// NewHealthHandler creates the handler. A nil monitor reports connected.
func NewHealthHandler(monitor ConnectivityReporter, providers, resolvers []string) *HealthHandler {
	return &HealthHandler{monitor: monitor, providers: providers, resolvers: resolvers, started: time.Now()}
}

func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Connected: h.monitor == nil || h.monitor.Connected(),
		Providers: h.providers,
		Resolvers: h.resolvers,
		Started:   humanize.Time(h.started),
	}
	if !status.Connected {
		status.Status = "offline"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
