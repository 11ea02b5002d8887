// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/result"
	"github.com/tracebox/tracebox/runner"
	"github.com/tracebox/tracebox/tracebox"
)

type runFunc func(ctx context.Context, params runner.TraceboxParams) (*result.Results, error)

// Server is the HTTP server for the tracebox API
type Server struct {
	tb      *runner.Runner
	run     runFunc
	started time.Time
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// NewServer creates a new HTTP server with an initialized Runner instance
func NewServer() *Server {
	tb := runner.New()
	return &Server{
		tb:      tb,
		run:     tb.RunTracebox,
		started: time.Now(),
	}
}

// Handler routes the API endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tracebox", s.TraceboxHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	return mux
}

// TraceboxHandler handles GET /tracebox requests
func (s *Server) TraceboxHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params, err := parseTraceboxParams(r.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, &tracebox.Error{Code: tracebox.ErrCodeInvalidRequest, Message: "Invalid parameters: " + err.Error(), Err: err})
		return
	}

	results, err := s.run(r.Context(), params)
	if err != nil {
		classified := tracebox.ClassifyError(err)
		log.Debugf("tracebox to %s failed: %s: %s", params.Hostname, classified.Code, err)
		writeError(w, statusFor(classified), classified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

// HealthHandler handles GET and HEAD /health requests
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

func statusFor(err *tracebox.Error) int {
	switch err.Code {
	case tracebox.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case tracebox.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err *tracebox.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(tracebox.ErrorResponse{Code: err.Code, Message: err.Message})
}

// Start starts the HTTP server on the specified address and shuts it down
// when ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Debugf("Starting HTTP server on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
