package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/metrics"
	"github.com/vheastro/bkgdata/internal/runs"
	"github.com/vheastro/bkgdata/internal/store"
)

// HTTPAPI provides the read-only HTTP endpoints of the ingestion service
type HTTPAPI struct {
	index         *store.RunIndex
	timeDelta     float64
	pointingDelta astro.Angle
	metrics       *metrics.Metrics
	natsConn      *nats.Conn
}

// NewHTTPAPI creates a new HTTP API instance. The time and pointing
// deltas are the neighbour-search defaults used when a request does not
// override them.
func NewHTTPAPI(index *store.RunIndex, timeDelta float64, pointingDelta astro.Angle, m *metrics.Metrics, natsConn *nats.Conn) *HTTPAPI {
	return &HTTPAPI{
		index:         index,
		timeDelta:     timeDelta,
		pointingDelta: pointingDelta,
		metrics:       m,
		natsConn:      natsConn,
	}
}

// SetupRoutes configures HTTP routes
func (api *HTTPAPI) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/runs", api.handleRuns)
	mux.HandleFunc("/runs/", api.handleRunByID)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", api.handleHealth)
	mux.HandleFunc("/readyz", api.handleReady)
}

// handleRuns handles GET /runs with an optional limit query parameter
func (api *HTTPAPI) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summaries := api.index.List()

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			if limit < len(summaries) {
				summaries = summaries[:limit]
			}
		}
	}

	rows := make([]runs.Row, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, summary.Row())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":      rows,
		"count":     len(rows),
		"timestamp": time.Now().UTC(),
	})
}

// handleRunByID handles GET /runs/{obs_id} and
// GET /runs/{obs_id}/neighbours
func (api *HTTPAPI) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/runs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	obsID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "Invalid observation ID", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1:
		api.serveRun(w, obsID)
	case len(parts) == 2 && parts[1] == "neighbours":
		api.serveNeighbours(w, r, obsID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (api *HTTPAPI) serveRun(w http.ResponseWriter, obsID int64) {
	summary, ok := api.index.Get(obsID)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"run":       summary.Row(),
		"timestamp": time.Now().UTC(),
	}

	// Attach sample details while the sample is still cached.
	if sample, ok := api.index.Sample(obsID); ok {
		info := map[string]interface{}{
			"num_events":  sample.NumEvents(),
			"energy_unit": sample.EnergyUnit,
		}
		if eff, ok := sample.EffObsTime(); ok {
			info["eff_obs_time_s"] = eff
		}
		response["sample"] = info
	}

	writeJSON(w, http.StatusOK, response)
}

func (api *HTTPAPI) serveNeighbours(w http.ResponseWriter, r *http.Request, obsID int64) {
	timeDelta := api.timeDelta
	if s := r.URL.Query().Get("time_delta"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			http.Error(w, "Invalid time_delta", http.StatusBadRequest)
			return
		}
		timeDelta = v
	}

	pointingDelta := api.pointingDelta
	if s := r.URL.Query().Get("pointing_delta"); s != "" {
		a, err := astro.ParseAngle(s)
		if err != nil {
			http.Error(w, "Invalid pointing_delta", http.StatusBadRequest)
			return
		}
		pointingDelta = a
	}

	neighbours, ok := api.index.Neighbours(obsID, timeDelta, pointingDelta)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	rows := make([]runs.Row, 0, len(neighbours))
	for _, summary := range neighbours {
		rows = append(rows, summary.Row())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"obs_id":             obsID,
		"time_delta_days":    timeDelta,
		"pointing_delta_deg": pointingDelta.Deg(),
		"neighbours":         rows,
		"count":              len(rows),
		"timestamp":          time.Now().UTC(),
	})
}

// handleHealth handles GET /healthz
func (api *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := api.index.Stats()

	// Update metrics
	if totalRuns, ok := stats["total_runs"].(int); ok {
		api.metrics.SetRunsIndexed(totalRuns)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"stats":     stats,
	})
}

// handleReady handles GET /readyz
func (api *HTTPAPI) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The feed is optional: without a configured connection the service
	// is ready on its own.
	feedEnabled := api.natsConn != nil
	natsConnected := feedEnabled && api.natsConn.IsConnected()
	api.metrics.SetNatsConnected(natsConnected)

	ready := !feedEnabled || natsConnected
	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":         status,
		"timestamp":      time.Now().UTC(),
		"feed_enabled":   feedEnabled,
		"nats_connected": natsConnected,
		"runs_indexed":   api.index.Len(),
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
