// Copyright 2025 Intmax2 Validity Prover
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/intmax2-labs/validity-prover/pkg/database"
)

// HealthHandlers exposes liveness/readiness over HTTP.
type HealthHandlers struct {
	db     *database.Client
	logger *log.Logger
}

func NewHealthHandlers(db *database.Client, logger *log.Logger) *HealthHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[Health] ", log.LstdFlags)
	}
	return &HealthHandlers{db: db, logger: logger}
}

// HandleHealth handles GET /healthz.
func (h *HealthHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status, err := h.db.Health(r.Context())
	if err != nil {
		h.logger.Printf("health check error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Printf("error encoding health response: %v", err)
	}
}
