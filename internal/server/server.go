// Package server exposes the collection engine over HTTP: a single
// JSON action endpoint plus health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaesapata/AWS-EVO-sub014/cloudtrail"
	"github.com/rafaesapata/AWS-EVO-sub014/credentials"
	"github.com/rafaesapata/AWS-EVO-sub014/orchestrator"
	"github.com/rafaesapata/AWS-EVO-sub014/telemetry"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

// Server decodes one JSON action request per call and dispatches it.
type Server struct {
	orch      *orchestrator.Orchestrator
	paginator *cloudtrail.Paginator
	resolver  credentials.Resolver
	logger    *telemetry.Logger

	startTime time.Time
	runCount  atomic.Int64
}

// New creates a server over the given engine pieces.
func New(orch *orchestrator.Orchestrator, paginator *cloudtrail.Paginator, resolver credentials.Resolver) *Server {
	return &Server{
		orch:      orch,
		paginator: paginator,
		resolver:  resolver,
		logger:    telemetry.NewLogger("server"),
		startTime: time.Now(),
	}
}

// actionRequest is the single request shape the engine accepts.
type actionRequest struct {
	Action       string `json:"action"`
	CredentialID string `json:"credential_id"`
	Region       string `json:"region,omitempty"`
	MaxEvents    int    `json:"max_events,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler returns the HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleAction)
	mux.HandleFunc("/health", s.handleHealth)
	if telemetry.PrometheusRegistry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST required"})
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request: " + err.Error()})
		return
	}

	switch req.Action {
	case "collect":
		s.handleCollect(w, r.Context(), req)
	case "lookup_events":
		s.handleEvents(w, r.Context(), req)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown action: " + req.Action})
	}
}

// handleCollect runs one collection pass. A missing credential is the
// one fatal, run-aborting condition; everything else degrades into
// permission errors inside the result.
func (s *Server) handleCollect(w http.ResponseWriter, ctx context.Context, req actionRequest) {
	resolved, err := s.resolver.Resolve(ctx, req.CredentialID, req.Region)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, credentials.ErrNoCredential) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.orch.Collect(ctx, resolved)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.runCount.Add(1)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, ctx context.Context, req actionRequest) {
	maxEvents := req.MaxEvents
	if maxEvents == 0 {
		maxEvents = cloudtrail.PageSize
	}
	if !cloudtrail.AllowedMaxEvents(maxEvents) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "max_events must be 50, 200 or 500"})
		return
	}

	resolved, err := s.resolver.Resolve(ctx, req.CredentialID, req.Region)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, credentials.ErrNoCredential) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	region := req.Region
	if region == "" {
		region = resolved.Region
	}

	events, err := s.paginator.LookupEvents(ctx, resolved.Credentials, region, maxEvents)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, types.EventLookupResult{
		Success: true,
		Events:  events,
		Count:   len(events),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"runs":           s.runCount.Load(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Loop runs collection on a fixed interval until the context ends.
// Failures are logged and the next tick proceeds.
func (s *Server) Loop(ctx context.Context, credentialID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			resolved, err := s.resolver.Resolve(ctx, credentialID, "")
			if err != nil {
				s.logger.WithContext(ctx).Error().Err(err).Msg("credential resolution failed, skipping tick")
				continue
			}
			if _, err := s.orch.Collect(ctx, resolved); err != nil {
				s.logger.WithContext(ctx).Error().Err(err).Msg("scheduled collection failed")
				continue
			}
			s.runCount.Add(1)
		}
	}
}
