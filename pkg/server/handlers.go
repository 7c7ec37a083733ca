// Package server exposes the service's operational HTTP surface: health,
// recorded-slot queries, store stats, Prometheus metrics and the live
// record feed. The sampling pipeline itself is queue-driven; nothing here
// sits on the write path.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/countwatch/countwatch/pkg/config"
	"github.com/countwatch/countwatch/pkg/httpx"
	"github.com/countwatch/countwatch/pkg/queue"
	"github.com/countwatch/countwatch/pkg/recorder"
	"github.com/countwatch/countwatch/pkg/storage"
	"github.com/countwatch/countwatch/pkg/window"
)

var startTime = time.Now()

const maxQueryLimit = 5000

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	QueueDepth int    `json:"queue_depth"`
}

// handleHealth returns service health status.
func handleHealth(q *queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, HealthResponse{
			Status:     "ok",
			Uptime:     time.Since(startTime).String(),
			QueueDepth: q.Len(),
		})
	}
}

// recordView is the read model for one recorded slot.
type recordView struct {
	MetricName string `json:"metricName"`
	SlotTime   string `json:"slotTime"`
	Count      int64  `json:"count"`
}

// handleRecords serves range queries over recorded slots:
// GET /v1/records?from=<ISO-8601>&to=<ISO-8601>&limit=<n>
func handleRecords(store storage.MetricStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := window.ParseTime(r.URL.Query().Get("from"))
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid from parameter: %w", err))
			return
		}
		to, err := window.ParseTime(r.URL.Query().Get("to"))
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid to parameter: %w", err))
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				httpx.RespondErrorString(w, http.StatusBadRequest, "invalid limit parameter")
				return
			}
		}
		if limit == 0 || limit > maxQueryLimit {
			limit = maxQueryLimit
		}

		ctx, cancel := contextWithTimeout(r.Context())
		defer cancel()

		records, err := store.Query(ctx, storage.QueryRequest{
			MetricName: recorder.MetricName,
			Start:      from,
			End:        to,
			Limit:      limit,
		})
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		views := make([]recordView, 0, len(records))
		for _, rec := range records {
			views = append(views, recordView{
				MetricName: rec.MetricName,
				SlotTime:   window.FormatTime(rec.SlotTime),
				Count:      rec.Count,
			})
		}
		httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"records": views,
			"count":   len(views),
		})
	}
}

// handleStats returns store statistics.
func handleStats(store storage.MetricStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := contextWithTimeout(r.Context())
		defer cancel()

		stats, err := store.Stats(ctx)
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, stats)
	}
}

// SetupRoutes configures all HTTP routes for the service.
func SetupRoutes(router *mux.Router, store storage.MetricStore, q *queue.Queue, hub *RecordHub) {
	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/health", handleHealth(q)).Methods("GET")
	api.HandleFunc("/records", handleRecords(store)).Methods("GET")
	api.HandleFunc("/stats", handleStats(store)).Methods("GET")
	api.HandleFunc("/ws", hub.HandleWebSocket).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func contextWithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, config.StoreTimeout)
}
