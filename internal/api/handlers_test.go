// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/drift"
	"github.com/tomtom215/gamebot/internal/pipeline"
	"github.com/tomtom215/gamebot/internal/runs"
	"github.com/tomtom215/gamebot/internal/snapshot"
)

type fakeLoader struct {
	mu      sync.Mutex
	calls   int
	env     string
	layer   string
	result  *pipeline.RunResult
	err     error
	running bool
	done    chan struct{}
}

func (f *fakeLoader) RunBronzeLoad(_ context.Context, env, layer string) (*pipeline.RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.env, f.layer = env, layer
	f.mu.Unlock()
	if f.done != nil {
		defer close(f.done)
	}
	return f.result, f.err
}

func (f *fakeLoader) Running() bool { return f.running }

type fakeStore struct {
	runs []runs.Run
	err  error
}

func (s *fakeStore) Get(_ context.Context, id string) (*runs.Run, error) {
	for i := range s.runs {
		if s.runs[i].RunID == id {
			return &s.runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", runs.ErrRunNotFound, id)
}

func (s *fakeStore) Latest(context.Context) (*runs.Run, error) {
	if len(s.runs) == 0 {
		return nil, runs.ErrRunNotFound
	}
	return &s.runs[0], nil
}

func (s *fakeStore) List(_ context.Context, limit int) ([]runs.Run, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.runs) {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(loader *fakeLoader, store *fakeStore, ping error) http.Handler {
	h := NewHandler(loader, store, fakePinger{err: ping}, time.Second)
	return NewRouter(h, &config.ServerConfig{RateLimitRequests: 100, RateLimitWindow: time.Minute})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v; body %s", err, rec.Body.String())
	}
	return resp
}

func TestStartRun(t *testing.T) {
	result := &pipeline.RunResult{RunID: "5f0c6a8e-9a51-4a0c-9c4e-2f1f5d7a0b11", Status: runs.StatusSuccess}

	tests := []struct {
		name       string
		body       string
		err        error
		result     *pipeline.RunResult
		wantStatus int
		wantCode   string
		wantCalls  int
	}{
		{"success", `{"environment":"dev","target_layer":"silver"}`, nil, result, http.StatusOK, "", 1},
		{"empty body uses defaults", ``, nil, result, http.StatusOK, "", 1},
		{"invalid environment", `{"environment":"staging"}`, nil, nil, http.StatusBadRequest, CodeValidation, 0},
		{"invalid layer", `{"target_layer":"platinum"}`, nil, nil, http.StatusBadRequest, CodeValidation, 0},
		{"malformed body", `{`, nil, nil, http.StatusBadRequest, CodeValidation, 0},
		{"in progress", `{}`, pipeline.ErrRunInProgress, nil, http.StatusConflict, CodeRunInProgress, 1},
		{"gate", `{"environment":"prod"}`, &pipeline.GateError{Environment: "prod", Branch: "feature/x"}, nil, http.StatusForbidden, CodeBranchRefused, 1},
		{"fetch", `{}`, &snapshot.FetchError{Dataset: "castaways", Op: "download", Err: errors.New("reset")}, nil, http.StatusBadGateway, CodeUpstream, 1},
		{"hard checks", `{}`, &drift.HardCheckError{}, &pipeline.RunResult{RunID: "r", Status: runs.StatusFailed}, http.StatusUnprocessableEntity, CodeChecksFailed, 1},
		{"merge failure", `{}`, errors.New("merge failed"), &pipeline.RunResult{RunID: "r", Status: runs.StatusFailed}, http.StatusInternalServerError, CodeInternal, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &fakeLoader{result: tt.result, err: tt.err}
			router := newTestRouter(loader, &fakeStore{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if loader.calls != tt.wantCalls {
				t.Errorf("loader calls = %d, want %d", loader.calls, tt.wantCalls)
			}
			resp := decode(t, rec)
			if tt.wantCode == "" {
				if resp.Status != "success" {
					t.Errorf("Status = %q, want success", resp.Status)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("Error = %+v, want code %s", resp.Error, tt.wantCode)
			}
			if tt.result != nil && resp.Data == nil {
				t.Error("failed run result missing from body")
			}
		})
	}
}

func TestStartRunPassesParameters(t *testing.T) {
	loader := &fakeLoader{result: &pipeline.RunResult{RunID: "r"}}
	router := newTestRouter(loader, &fakeStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"environment":"prod","target_layer":"gold"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if loader.env != "prod" || loader.layer != "gold" {
		t.Errorf("loader got env=%q layer=%q, want prod/gold", loader.env, loader.layer)
	}
	if rec.Header().Get(CorrelationHeader) == "" {
		t.Error("correlation header not set")
	}
}

func TestStartRunAsync(t *testing.T) {
	loader := &fakeLoader{result: &pipeline.RunResult{RunID: "r"}, done: make(chan struct{})}
	h := NewHandler(loader, &fakeStore{}, fakePinger{}, time.Second)
	router := NewRouter(h, &config.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"async":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	select {
	case <-loader.done:
	case <-time.After(5 * time.Second):
		t.Fatal("background load did not run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestStartRunAsyncWhileRunning(t *testing.T) {
	loader := &fakeLoader{running: true}
	router := newTestRouter(loader, &fakeStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"async":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if loader.calls != 0 {
		t.Errorf("loader calls = %d, want 0", loader.calls)
	}
}

func TestRunQueries(t *testing.T) {
	started := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	store := &fakeStore{runs: []runs.Run{
		{RunID: "bbbbbbbb-0000-0000-0000-000000000002", Environment: "dev", Status: runs.StatusSuccess, StartedAt: started.Add(time.Hour)},
		{RunID: "aaaaaaaa-0000-0000-0000-000000000001", Environment: "dev", Status: runs.StatusFailed, StartedAt: started},
	}}
	router := newTestRouter(&fakeLoader{}, store, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"list", "/api/v1/runs", http.StatusOK},
		{"list limited", "/api/v1/runs?limit=1", http.StatusOK},
		{"list limit too large", "/api/v1/runs?limit=500", http.StatusBadRequest},
		{"list limit zero", "/api/v1/runs?limit=0", http.StatusBadRequest},
		{"latest", "/api/v1/runs/latest", http.StatusOK},
		{"by id", "/api/v1/runs/aaaaaaaa-0000-0000-0000-000000000001", http.StatusOK},
		{"unknown id", "/api/v1/runs/cccccccc-0000-0000-0000-000000000003", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestListRunsLimit(t *testing.T) {
	store := &fakeStore{runs: []runs.Run{{RunID: "a"}, {RunID: "b"}, {RunID: "c"}}}
	router := newTestRouter(&fakeLoader{}, store, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=2", nil))

	var body struct {
		Data []runs.Run `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(body.Data) != 2 {
		t.Errorf("len(data) = %d, want 2", len(body.Data))
	}
}

func TestListRunsEmpty(t *testing.T) {
	router := newTestRouter(&fakeLoader{}, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("body = %s, want empty data array", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		ping       error
		wantStatus int
		want       string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"warehouse down", errors.New("closed"), http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeLoader{running: true}, &fakeStore{}, tt.ping)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				Data HealthStatus `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}
			if body.Data.Status != tt.want || !body.Data.LoadRunning {
				t.Errorf("health = %+v, want %s with load running", body.Data, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeLoader{}, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gamebot_api_requests_total") {
		t.Error("metrics output missing gamebot_api_requests_total")
	}
}

func TestRateLimit(t *testing.T) {
	loader := &fakeLoader{result: &pipeline.RunResult{RunID: "r"}}
	h := NewHandler(loader, &fakeStore{}, fakePinger{}, time.Second)
	router := NewRouter(h, &config.ServerConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute})

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{}`))
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}
