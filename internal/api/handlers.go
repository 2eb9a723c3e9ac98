// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gamebot/internal/database"
	"github.com/tomtom215/gamebot/internal/drift"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/pipeline"
	"github.com/tomtom215/gamebot/internal/runs"
	"github.com/tomtom215/gamebot/internal/snapshot"
	"github.com/tomtom215/gamebot/internal/validation"
)

const maxBodyBytes = 1 << 16

// Loader runs loads.
type Loader interface {
	RunBronzeLoad(ctx context.Context, environment, targetLayer string) (*pipeline.RunResult, error)
	Running() bool
}

// RunStore reads recorded runs.
type RunStore interface {
	Get(ctx context.Context, runID string) (*runs.Run, error)
	Latest(ctx context.Context) (*runs.Run, error)
	List(ctx context.Context, limit int) ([]runs.Run, error)
}

// Pinger reports warehouse reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API routes.
type Handler struct {
	loader  Loader
	runs    RunStore
	db      Pinger
	timeout time.Duration

	// background tracks async loads so Wait can drain them on shutdown.
	background chan struct{}
}

// NewHandler creates a handler. timeout bounds the read-only handlers.
func NewHandler(loader Loader, store RunStore, db Pinger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		loader:     loader,
		runs:       store,
		db:         db,
		timeout:    timeout,
		background: make(chan struct{}, 1),
	}
}

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	Environment string `json:"environment" validate:"omitempty,oneof=dev prod"`
	TargetLayer string `json:"target_layer" validate:"omitempty,oneof=bronze silver gold"`

	// Async answers 202 immediately and runs the load in the background.
	Async bool `json:"async"`
}

// ListRunsRequest holds the query of GET /api/v1/runs.
type ListRunsRequest struct {
	Limit int `validate:"min=1,max=100"`
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status      string `json:"status"`
	Warehouse   string `json:"warehouse"`
	LoadRunning bool   `json:"load_running"`
}

// StartRun handles POST /api/v1/runs.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req RunRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, "Unable to read request body", err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, CodeValidation, "Request body must be a JSON object", nil)
			return
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondJSON(w, http.StatusBadRequest, &Response{
			Status:   "error",
			Metadata: Metadata{Timestamp: time.Now().UTC()},
			Error:    verr.ToAPIError(),
		})
		return
	}

	if req.Async {
		h.startAsync(w, r, req)
		return
	}

	result, err := h.loader.RunBronzeLoad(r.Context(), req.Environment, req.TargetLayer)
	if err != nil {
		h.loadFailed(w, result, err)
		return
	}
	respondData(w, http.StatusOK, result, started)
}

func (h *Handler) startAsync(w http.ResponseWriter, r *http.Request, req RunRequest) {
	if h.loader.Running() {
		respondError(w, http.StatusConflict, CodeRunInProgress, pipeline.ErrRunInProgress.Error(), nil)
		return
	}
	select {
	case h.background <- struct{}{}:
	default:
		respondError(w, http.StatusConflict, CodeRunInProgress, pipeline.ErrRunInProgress.Error(), nil)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer func() { <-h.background }()
		result, err := h.loader.RunBronzeLoad(ctx, req.Environment, req.TargetLayer)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Background load failed")
			return
		}
		logging.Ctx(ctx).Info().Str("run_id", result.RunID).Msg("Background load finished")
	}()

	respondJSON(w, http.StatusAccepted, &Response{
		Status:   "accepted",
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

// Wait blocks until an async load started by the handler has returned or
// ctx ends.
func (h *Handler) Wait(ctx context.Context) error {
	select {
	case h.background <- struct{}{}:
		<-h.background
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loadFailed maps a load error to a status code. A result is present when
// the run was opened before failing.
func (h *Handler) loadFailed(w http.ResponseWriter, result *pipeline.RunResult, err error) {
	var (
		gate  *pipeline.GateError
		fetch *snapshot.FetchError
		hard  *drift.HardCheckError
	)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		respondError(w, http.StatusConflict, CodeRunInProgress, err.Error(), nil)
	case errors.As(err, &gate):
		respondError(w, http.StatusForbidden, CodeBranchRefused, err.Error(), nil)
	case errors.As(err, &fetch):
		respondError(w, http.StatusBadGateway, CodeUpstream, err.Error(), err)
	case errors.As(err, &hard):
		respondFailure(w, http.StatusUnprocessableEntity, CodeChecksFailed, result, err)
	case result != nil:
		respondFailure(w, http.StatusInternalServerError, CodeInternal, result, err)
	default:
		respondError(w, http.StatusInternalServerError, CodeInternal, err.Error(), err)
	}
}

// ListRuns handles GET /api/v1/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	req := ListRunsRequest{Limit: getIntParam(r, "limit", 20)}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondJSON(w, http.StatusBadRequest, &Response{
			Status:   "error",
			Metadata: Metadata{Timestamp: time.Now().UTC()},
			Error:    verr.ToAPIError(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	list, err := h.runs.List(ctx, req.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to list runs", err)
		return
	}
	if list == nil {
		list = []runs.Run{}
	}
	respondData(w, http.StatusOK, list, started)
}

// LatestRun handles GET /api/v1/runs/latest.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	run, err := h.runs.Latest(ctx)
	h.respondRun(w, run, err, started)
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	run, err := h.runs.Get(ctx, chi.URLParam(r, "id"))
	h.respondRun(w, run, err, started)
}

func (h *Handler) respondRun(w http.ResponseWriter, run *runs.Run, err error, started time.Time) {
	switch {
	case errors.Is(err, runs.ErrRunNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "Run not found", nil)
	case err != nil:
		respondError(w, http.StatusInternalServerError, CodeDatabase, "Failed to read run", err)
	default:
		respondData(w, http.StatusOK, run, started)
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{Status: "healthy", Warehouse: "connected", LoadRunning: h.loader.Running()}
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("Warehouse health check failed")
		status.Status = "degraded"
		status.Warehouse = "unreachable"
		code = http.StatusServiceUnavailable
	}
	respondData(w, code, status, started)
}

var _ Pinger = (*database.DB)(nil)
