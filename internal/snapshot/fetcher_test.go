// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

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

	"github.com/tomtom215/gamebot/internal/config"
)

// fakeUpstream serves a survivoR-shaped repository: raw files under /data
// and /json and a commits API under /commits.
type fakeUpstream struct {
	mu       sync.Mutex
	files    map[string]string
	etags    map[string]string
	commits  map[string]string
	requests map[string]int
	throttle int
	noHead   bool
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		files:    make(map[string]string),
		etags:    make(map[string]string),
		commits:  make(map[string]string),
		requests: make(map[string]int),
	}
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.requests[r.Method+" "+r.URL.Path]++

	if u.throttle > 0 {
		u.throttle--
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	if r.URL.Path == "/commits" {
		date, ok := u.commits[r.URL.Query().Get("path")]
		if !ok {
			fmt.Fprint(w, "[]")
			return
		}
		fmt.Fprintf(w, `[{"sha":"abc123","html_url":"https://example.test/c/abc123","commit":{"author":{"date":%q}}}]`, date)
		return
	}

	body, ok := u.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodHead {
		if u.noHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("ETag", u.etags[r.URL.Path])
		return
	}
	fmt.Fprint(w, body)
}

func (u *fakeUpstream) count(key string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[key]
}

func testSourceConfig(baseURL string, datasets ...string) *config.SourceConfig {
	return &config.SourceConfig{
		BaseRawURL:     baseURL + "/data",
		JSONRawURL:     baseURL + "/json",
		CommitsAPIURL:  baseURL + "/commits",
		Datasets:       datasets,
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestFetchUsesCacheOnUnchangedSignature(t *testing.T) {
	up := newFakeUpstream()
	up.files["/json/castaways.json"] = `[{"castaway_id": "US0001", "season": 1}]`
	up.etags["/json/castaways.json"] = `"v1"`
	srv := httptest.NewServer(up)
	defer srv.Close()

	cfg := testSourceConfig(srv.URL, "castaways")
	cache := NewMemoryCache()
	f := NewFetcher(cfg, cache)
	src := SourceFromConfig(cfg)
	ctx := context.Background()

	first, err := f.Fetch(ctx, src)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	second, err := f.Fetch(ctx, src)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if got := up.count("GET /json/castaways.json"); got != 1 {
		t.Errorf("payload downloads = %d, want 1 (second fetch should hit the cache)", got)
	}
	if first.Signature() != second.Signature() {
		t.Errorf("signature changed across identical fetches: %s vs %s", first.Signature(), second.Signature())
	}
	v, _ := second.Version("castaways")
	if !v.FromCache || v.Signature != `"v1"` {
		t.Errorf("version = %+v, want cached with ETag signature", v)
	}
	tbl, ok := second.Table("castaways")
	if !ok || tbl.Len() != 1 {
		t.Fatalf("cached table missing or wrong size")
	}

	// A new upstream revision changes the signature and downloads again.
	up.mu.Lock()
	up.files["/json/castaways.json"] = `[{"castaway_id": "US0001", "season": 1}, {"castaway_id": "US0002", "season": 1}]`
	up.etags["/json/castaways.json"] = `"v2"`
	up.mu.Unlock()

	third, err := f.Fetch(ctx, src)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if third.Signature() == first.Signature() {
		t.Error("signature should change with the upstream revision")
	}
	if tbl, _ := third.Table("castaways"); tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
	if cache.Len() != 2 {
		t.Errorf("cache entries = %d, want 2", cache.Len())
	}
}

func TestFetchForceRefreshBypassesCache(t *testing.T) {
	up := newFakeUpstream()
	up.files["/json/episodes.json"] = `[{"episode": 1}]`
	up.etags["/json/episodes.json"] = `"e1"`
	srv := httptest.NewServer(up)
	defer srv.Close()

	cfg := testSourceConfig(srv.URL, "episodes")
	cfg.ForceRefresh = true
	f := NewFetcher(cfg, nil)
	src := SourceFromConfig(cfg)

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), src); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if got := up.count("GET /json/episodes.json"); got != 2 {
		t.Errorf("payload downloads = %d, want 2", got)
	}
}

func TestFetchSignatureFallsBackToBodyHash(t *testing.T) {
	up := newFakeUpstream()
	up.noHead = true
	up.files["/json/episodes.json"] = `[{"episode": 1}]`
	srv := httptest.NewServer(up)
	defer srv.Close()

	cfg := testSourceConfig(srv.URL, "episodes")
	f := NewFetcher(cfg, nil)
	snap, err := f.Fetch(context.Background(), SourceFromConfig(cfg))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	v, _ := snap.Version("episodes")
	if !strings.HasPrefix(v.Signature, "sha256:") {
		t.Errorf("Signature = %q, want sha256 body hash", v.Signature)
	}
	if got := up.count("GET /json/episodes.json"); got != 1 {
		t.Errorf("downloads = %d, want 1 (probe body reused)", got)
	}
}

func TestFetchRetriesOnTooManyRequests(t *testing.T) {
	up := newFakeUpstream()
	up.files["/json/episodes.json"] = `[{"episode": 1}]`
	up.etags["/json/episodes.json"] = `"e1"`
	up.throttle = 2
	srv := httptest.NewServer(up)
	defer srv.Close()

	cfg := testSourceConfig(srv.URL, "episodes")
	cfg.CommitsAPIURL = ""
	f := NewFetcher(cfg, nil)
	if _, err := f.Fetch(context.Background(), SourceFromConfig(cfg)); err != nil {
		t.Fatalf("Fetch() error = %v, want success after retries", err)
	}
	if got := up.count("HEAD /json/episodes.json"); got != 3 {
		t.Errorf("HEAD attempts = %d, want 3", got)
	}
}

func TestFetchErrors(t *testing.T) {
	up := newFakeUpstream()
	up.files["/json/broken.json"] = `[{"a": 1}`
	up.etags["/json/broken.json"] = `"b1"`
	srv := httptest.NewServer(up)
	defer srv.Close()

	tests := []struct {
		dataset string
		wantOp  string
	}{
		{"missing", "probe"},
		{"broken", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.dataset, func(t *testing.T) {
			cfg := testSourceConfig(srv.URL, tt.dataset)
			f := NewFetcher(cfg, nil)
			_, err := f.Fetch(context.Background(), SourceFromConfig(cfg))
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Fetch() error = %v, want *FetchError", err)
			}
			if fe.Op != tt.wantOp || fe.Dataset != tt.dataset {
				t.Errorf("FetchError = %+v, want op %s", fe, tt.wantOp)
			}
		})
	}
}

func TestSelectOriginPrefersDecodableFreshest(t *testing.T) {
	up := newFakeUpstream()
	up.commits["data/vote_history.rda"] = "2024-03-01T00:00:00Z"
	up.commits["dev/json/vote_history.json"] = "2024-02-01T00:00:00Z"
	srv := httptest.NewServer(up)
	defer srv.Close()

	cfg := testSourceConfig(srv.URL, "vote_history")
	f := NewFetcher(cfg, nil)
	cand, err := f.selectOrigin(context.Background(), SourceFromConfig(cfg), "vote_history")
	if err != nil {
		t.Fatalf("selectOrigin() error = %v", err)
	}
	if cand.origin.Name != OriginJSON {
		t.Errorf("origin = %s, want json (primary is not decodable)", cand.origin.Name)
	}
	if cand.commit.SHA != "abc123" || cand.commit.CommittedAt.Month() != time.February {
		t.Errorf("commit = %+v", cand.commit)
	}

	primaryOnly := SourceFromConfig(&config.SourceConfig{BaseRawURL: srv.URL + "/data"})
	if _, err := f.selectOrigin(context.Background(), primaryOnly, "vote_history"); err == nil {
		t.Error("selectOrigin() with only an undecodable origin should fail")
	}
}

func TestCombinedSignatureOrderIndependent(t *testing.T) {
	a := map[string]DatasetVersion{
		"castaways": {Origin: "json", Signature: "x"},
		"episodes":  {Origin: "json", Signature: "y"},
	}
	b := map[string]DatasetVersion{
		"episodes":  {Origin: "json", Signature: "y"},
		"castaways": {Origin: "json", Signature: "x"},
	}
	if CombinedSignature(a) != CombinedSignature(b) {
		t.Error("CombinedSignature should not depend on map order")
	}
	b["episodes"] = DatasetVersion{Origin: "json", Signature: "z"}
	if CombinedSignature(a) == CombinedSignature(b) {
		t.Error("CombinedSignature should change when a dataset changes")
	}
}
