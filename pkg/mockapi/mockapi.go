// Package mockapi implements the mock counter API used to exercise the
// sampler boundary: a deterministic /response_count endpoint and a
// liveness probe.
package mockapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/countwatch/countwatch/pkg/httpx"
	"github.com/countwatch/countwatch/pkg/window"
)

// CountFor returns the deterministic count for a window ending at to:
// a function of the minute component only, cycling 0-10 every 11 minutes.
// Repeated queries for the same window always agree, which is what makes
// the idempotency path testable end to end.
func CountFor(w window.Window) int64 {
	return int64(w.To.UTC().Minute() % 11)
}

// NewRouter builds the mock API routes.
func NewRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", handleHealth).Methods("GET")
	router.HandleFunc("/response_count", handleResponseCount).Methods("GET")
	return router
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// responseCountBody mirrors the real counter API: the queried bounds are
// echoed verbatim alongside the count.
type responseCountBody struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int64  `json:"count"`
}

func handleResponseCount(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "missing required query parameters: from and to")
		return
	}

	fromTime, err := window.ParseTime(from)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid ISO8601 format for from parameter")
		return
	}
	toTime, err := window.ParseTime(to)
	if err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid ISO8601 format for to parameter")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, responseCountBody{
		From:  from,
		To:    to,
		Count: CountFor(window.Window{From: fromTime, To: toTime}),
	})
}
