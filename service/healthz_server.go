package service

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Status describes the most recent completed run
type Status struct {
	RunID    string `json:"run_id,omitempty"`
	Passed   bool   `json:"passed"`
	Total    int    `json:"total"`
	Failures int    `json:"failures"`
}

// StatusFunc returns the latest status, ok is false until a run has completed
type StatusFunc func() (status Status, ok bool)

// NewHealthzHandler returns the router serving /healthz and /status
func NewHealthzHandler(logger log.Logger, status StatusFunc) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		logger.Debug("Received health check request", "path", req.URL.Path)
		w.Write([]byte("OK")) //nolint:errcheck
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		if status == nil {
			http.Error(w, "no status available", http.StatusNotFound)
			return
		}
		st, ok := status()
		if !ok {
			http.Error(w, "no run completed yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			logger.Warn("Failed to write status", "err", err)
		}
	}).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(r)
}
