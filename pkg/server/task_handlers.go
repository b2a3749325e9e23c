// Copyright 2025 Intmax2 Validity Prover
package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/intmax2-labs/validity-prover/pkg/database"
	"github.com/intmax2-labs/validity-prover/pkg/metrics"
)

// TaskHandlers exposes the worker-facing prover task API (§6): workers
// pull an assignment, heartbeat it while proving, and submit the result.
type TaskHandlers struct {
	tasks    *database.ProverTaskRepository
	leaseTTL time.Duration
	logger   *log.Logger
}

func NewTaskHandlers(db *database.Client, leaseTTL time.Duration, logger *log.Logger) *TaskHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[TaskAPI] ", log.LstdFlags)
	}
	return &TaskHandlers{tasks: database.NewProverTaskRepository(db), leaseTTL: leaseTTL, logger: logger}
}

type assignRequest struct {
	WorkerToken uuid.UUID `json:"worker_token"`
}

type assignResponse struct {
	BlockNumber    uint32 `json:"block_number"`
	LeaseTTLSeconds int64 `json:"lease_ttl_seconds"`
}

// HandleAssign handles POST /prover-task/assign. A worker with no task to
// do is a routine outcome, not an error: it is reported as 204.
func (h *TaskHandlers) HandleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "worker_token is required")
		return
	}

	task, err := h.tasks.AssignLowestNew(r.Context(), req.WorkerToken, time.Now())
	if errors.Is(err, database.ErrNoTaskAvailable) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.logger.Printf("error assigning task: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to assign task")
		return
	}

	metrics.ProverTasksAssigned.Inc()
	h.writeJSON(w, http.StatusOK, assignResponse{
		BlockNumber:     task.BlockNumber,
		LeaseTTLSeconds: int64(h.leaseTTL / time.Second),
	})
}

type heartbeatRequest struct {
	BlockNumber uint32    `json:"block_number"`
	WorkerToken uuid.UUID `json:"worker_token"`
}

// HandleHeartbeat handles POST /prover-task/heartbeat.
func (h *TaskHandlers) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "block_number and worker_token are required")
		return
	}

	err := h.tasks.Heartbeat(r.Context(), req.BlockNumber, req.WorkerToken, time.Now())
	if errors.Is(err, database.ErrTaskNotAssignedToCaller) {
		h.writeError(w, http.StatusConflict, "LEASE_EXPIRED", "lease is no longer held by this worker")
		return
	}
	if err != nil {
		h.logger.Printf("error recording heartbeat: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record heartbeat")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	BlockNumber     uint32    `json:"block_number"`
	WorkerToken     uuid.UUID `json:"worker_token"`
	TransitionProof string    `json:"transition_proof"` // hex-encoded
}

// HandleSubmit handles POST /prover-task/submit. A worker whose lease
// expired mid-proof is rejected without touching stored state (§7); the
// task remains available for reassignment via the sweeper.
func (h *TaskHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "block_number, worker_token and transition_proof are required")
		return
	}

	proof, err := hex.DecodeString(req.TransitionProof)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PROOF", "transition_proof must be hex-encoded")
		return
	}

	err = h.tasks.Submit(r.Context(), req.BlockNumber, req.WorkerToken, proof, time.Now())
	if errors.Is(err, database.ErrTaskNotAssignedToCaller) {
		h.writeError(w, http.StatusConflict, "LEASE_EXPIRED", "lease is no longer held by this worker")
		return
	}
	if err != nil {
		h.logger.Printf("error submitting proof: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to submit proof")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("error encoding response: %v", err)
	}
}

func (h *TaskHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}
