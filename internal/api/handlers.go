package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/onewire"
	"github.com/nerrad567/hard/internal/process"
	"github.com/nerrad567/hard/internal/stats"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string             `json:"status"`
	Version    string             `json:"version,omitempty"`
	Components map[string]string  `json:"components"`
	Loop       *onewire.Status    `json:"loop,omitempty"`
	Pool       *process.PoolStats `json:"pool,omitempty"`
	Clients    int                `json:"ws_clients"`
}

// CountersResponse is returned by GET /counters.
type CountersResponse struct {
	Counters []stats.Counter       `json:"counters"`
	Cesspool *stats.CesspoolLevel `json:"cesspool,omitempty"`
}

// TaskAccepted is returned by POST /tasks.
type TaskAccepted struct {
	ID string `json:"id"`
}

// handleHealth reports "ok" with 200, or "degraded" with 503 when any
// component check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Components: make(map[string]string, len(s.components)),
		Clients:    s.hub.ClientCount(),
	}
	for name, c := range s.components {
		if err := c.HealthCheck(ctx); err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}
	if s.loop != nil {
		st := s.loop.Status()
		resp.Loop = &st
	}
	if s.pool != nil {
		ps := s.pool.Stats()
		resp.Pool = &ps
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body: "+err.Error())
		return
	}

	task, err := automation.DecodeTask(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.tasks.Submit(task); err != nil {
		if errors.Is(err, automation.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeQueueFull, "task queue is full")
			return
		}
		writeBadRequest(w, err.Error())
		return
	}

	s.logger.Info("task accepted", "task_id", task.ID, "command", task.Command.String(), "tag_group", task.TagGroup)
	writeJSON(w, http.StatusAccepted, TaskAccepted{ID: task.ID})
}

// handleCounters lists counters, optionally filtered by ?kind=.
func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	if s.counters == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "counters are not available")
		return
	}

	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", stats.KindRelay, stats.KindYeelight, stats.KindSensor:
	default:
		writeBadRequest(w, "unknown counter kind: "+kind)
		return
	}

	counters, err := s.counters.Counters(r.Context(), kind)
	if err != nil {
		s.logger.Error("listing counters failed", "error", err)
		writeInternalError(w, "listing counters failed")
		return
	}
	if counters == nil {
		counters = []stats.Counter{}
	}
	level, err := s.counters.Cesspool(r.Context())
	if err != nil {
		s.logger.Error("reading cesspool level failed", "error", err)
		writeInternalError(w, "reading cesspool level failed")
		return
	}

	writeJSON(w, http.StatusOK, CountersResponse{Counters: counters, Cesspool: level})
}
