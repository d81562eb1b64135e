package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-ticker/internal/lifecycle"
	"github.com/kjstillabower/weather-ticker/internal/observability"
	"github.com/kjstillabower/weather-ticker/internal/snapshot"
	"github.com/kjstillabower/weather-ticker/internal/traffic"
)

// LineSource exposes what a display currently shows.
type LineSource interface {
	Lines() []string
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	// ErrorWindow and DegradedErrorPct define the fetch failure rate that reports degraded.
	ErrorWindow      time.Duration
	DegradedErrorPct int
	// StaleAfter is the snapshot age past which health reports stale. Zero disables.
	StaleAfter time.Duration
}

// Handler serves the read-only status endpoints. It never touches scheduler state
// directly; everything it reads is safe for concurrent access.
type Handler struct {
	store        *snapshot.Store
	phase        *lifecycle.Tracker
	traffic      *traffic.Tracker
	displays     map[string]LineSource
	healthConfig *HealthConfig
	logger       *zap.Logger
	now          func() time.Time

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. displays maps a display name to its recorder.
func NewHandler(
	store *snapshot.Store,
	phase *lifecycle.Tracker,
	tracker *traffic.Tracker,
	displays map[string]LineSource,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:        store,
		phase:        phase,
		traffic:      tracker,
		displays:     displays,
		healthConfig: healthConfig,
		logger:       logger,
		now:          time.Now,
	}
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"phase":      h.phase.Phase().String(),
		"phaseSince": h.phase.Since().UTC().Format(time.RFC3339),
		"timestamp":  h.now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	if age, ok := h.store.Age(h.now()); ok {
		resp["snapshotAgeSeconds"] = int(age.Seconds())
	}
	if h.traffic != nil {
		failures, total := h.traffic.ErrorRate(h.errorWindow())
		resp["fetches"] = map[string]int{"total": total, "failed": failures}
		if last, ok := h.traffic.LastSuccess(); ok {
			resp["lastSuccess"] = last.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > halted > starting > waiting > degraded > stale > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if h.phase.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	switch h.phase.Phase() {
	case lifecycle.Halted:
		return healthResult{"halted", http.StatusServiceUnavailable, "network_join_failed"}
	case lifecycle.Bootstrapping:
		return healthResult{"starting", http.StatusServiceUnavailable, "bootstrapping"}
	}
	age, ok := h.store.Age(h.now())
	if !ok {
		return healthResult{"waiting", http.StatusServiceUnavailable, "no_snapshot"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.traffic != nil && h.healthConfig.DegradedErrorPct > 0 {
		failures, total := h.traffic.ErrorRate(h.errorWindow())
		if total > 0 && failures*100 >= h.healthConfig.DegradedErrorPct*total {
			return healthResult{"degraded", http.StatusOK, "fetch_error_rate"}
		}
	}
	if h.healthConfig.StaleAfter > 0 && age > h.healthConfig.StaleAfter {
		return healthResult{"stale", http.StatusOK, "snapshot_age"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) errorWindow() time.Duration {
	if h.healthConfig != nil && h.healthConfig.ErrorWindow > 0 {
		return h.healthConfig.ErrorWindow
	}
	return 10 * time.Minute
}

// GetDisplay handles GET /display: the text each display currently shows.
func (h *Handler) GetDisplay(w http.ResponseWriter, r *http.Request) {
	resp := make(map[string][]string, len(h.displays))
	for name, src := range h.displays {
		resp[name] = src.Lines()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSnapshot handles GET /snapshot. 404 until the first successful fetch.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Load()
	if snap == nil {
		writeError(w, r, http.StatusNotFound, "NO_SNAPSHOT", "no weather snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error body with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": CorrelationID(r.Context()),
		},
	})
}
