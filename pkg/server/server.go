// Copyright 2025 Intmax2 Validity Prover
//
// Package server exposes the Validity Prover's query API and worker
// coordination endpoints (§6) over stdlib net/http, matching the
// teacher's ServeMux + per-domain handler-struct convention.

package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intmax2-labs/validity-prover/pkg/database"
)

// Server wires the query API, worker task API, health, and metrics
// endpoints behind one ServeMux.
type Server struct {
	mux    *http.ServeMux
	addr   string
	logger *log.Logger
	http   *http.Server
}

func New(addr string, db *database.Client, leaseTTL time.Duration, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[Server] ", log.LstdFlags)
	}

	mux := http.NewServeMux()
	query := NewQueryHandlers(db, logger)
	tasks := NewTaskHandlers(db, leaseTTL, logger)
	health := NewHealthHandlers(db, logger)

	mux.HandleFunc("/validity-proof/", query.HandleGetValidityProof)
	mux.HandleFunc("/block-number-by-tx-tree-root/", query.HandleGetBlockNumberByTxTreeRoot)
	mux.HandleFunc("/deposit-info/", query.HandleGetDepositInfo)
	mux.HandleFunc("/account-membership-proof/", query.HandleGetAccountMembershipProof)

	mux.HandleFunc("/prover-task/assign", tasks.HandleAssign)
	mux.HandleFunc("/prover-task/heartbeat", tasks.HandleHeartbeat)
	mux.HandleFunc("/prover-task/submit", tasks.HandleSubmit)

	mux.HandleFunc("/healthz", health.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{mux: mux, addr: addr, logger: logger}
}

func (s *Server) ListenAndServe() error {
	s.logger.Printf("listening on %s", s.addr)
	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, if it has been started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
