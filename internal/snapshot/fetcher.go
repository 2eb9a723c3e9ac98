// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/metrics"
)

// Fetcher retrieves snapshots. It is safe for concurrent use; the cache is
// its only state.
type Fetcher struct {
	client       *upstreamClient
	cache        Cache
	forceRefresh bool
	now          func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client.http = c
	}
}

// WithClock overrides the clock used for FetchedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// NewFetcher creates a fetcher. A nil cache keeps payloads in memory.
func NewFetcher(cfg *config.SourceConfig, cache Cache, opts ...Option) *Fetcher {
	if cache == nil {
		cache = NewMemoryCache()
	}
	f := &Fetcher{
		client:       newUpstreamClient(cfg, nil),
		cache:        cache,
		forceRefresh: cfg.ForceRefresh,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Probe resolves the current revision of every dataset without downloading
// payloads unless a signature requires it.
func (f *Fetcher) Probe(ctx context.Context, src Source) (map[string]DatasetVersion, error) {
	versions := make(map[string]DatasetVersion, len(src.Datasets))
	for _, ds := range src.Datasets {
		v, _, err := f.resolve(ctx, src, ds)
		if err != nil {
			return nil, err
		}
		versions[ds] = v
	}
	return versions, nil
}

// Fetch returns the current snapshot of src. Datasets whose signature is
// cached are served without downloading the payload.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (*Snapshot, error) {
	tables := make(map[string]*Table, len(src.Datasets))
	versions := make(map[string]DatasetVersion, len(src.Datasets))

	for _, ds := range src.Datasets {
		start := time.Now()
		t, v, err := f.fetchDataset(ctx, src, ds)
		if err != nil {
			metrics.RecordFetch("error", time.Since(start))
			return nil, err
		}
		if v.FromCache {
			metrics.RecordFetch("cached", 0)
		} else {
			metrics.RecordFetch("ok", time.Since(start))
		}
		tables[ds] = t
		versions[ds] = v
	}

	snap := New(src, tables, versions, f.now().UTC())
	logging.Info().Int("datasets", len(tables)).Str("signature", snap.Signature()).
		Msg("Snapshot fetched")
	return snap, nil
}

// resolve selects the origin and signature of a dataset. The body is
// returned when signature probing had to download it.
func (f *Fetcher) resolve(ctx context.Context, src Source, dataset string) (DatasetVersion, []byte, error) {
	cand, err := f.selectOrigin(ctx, src, dataset)
	if err != nil {
		return DatasetVersion{}, nil, &FetchError{Dataset: dataset, Op: "select origin", Err: err}
	}
	fileURL := cand.origin.FileURL(dataset)
	sig, body, err := f.probeSignature(ctx, fileURL)
	if err != nil {
		return DatasetVersion{}, nil, &FetchError{Dataset: dataset, URL: fileURL, Op: "probe", Err: err}
	}
	return DatasetVersion{
		Dataset:   dataset,
		Origin:    cand.origin.Name,
		URL:       fileURL,
		Signature: sig,
		Commit:    cand.commit,
	}, body, nil
}

func (f *Fetcher) fetchDataset(ctx context.Context, src Source, dataset string) (*Table, DatasetVersion, error) {
	v, body, err := f.resolve(ctx, src, dataset)
	if err != nil {
		return nil, v, err
	}

	if body == nil && !f.forceRefresh {
		entry, err := f.cache.Get(ctx, dataset, v.Signature)
		if err != nil {
			logging.Warn().Err(err).Str("dataset", dataset).Msg("Snapshot cache read failed")
		} else if entry != nil {
			body = entry.Payload
			v.FromCache = true
		}
	}

	if body == nil {
		resp, err := f.client.do(ctx, http.MethodGet, v.URL, false)
		if err != nil {
			return nil, v, &FetchError{Dataset: dataset, URL: v.URL, Op: "download", Err: err}
		}
		body = resp.Body
		logging.Info().Str("dataset", dataset).Str("origin", v.Origin).Int("bytes", len(body)).
			Msg("Downloaded dataset")
	}

	t, err := DecodeJSON(dataset, body)
	if err != nil {
		return nil, v, &FetchError{Dataset: dataset, URL: v.URL, Op: "decode", Err: err}
	}

	if !v.FromCache {
		entry := &CacheEntry{
			Dataset:   dataset,
			Origin:    v.Origin,
			Signature: v.Signature,
			URL:       v.URL,
			FetchedAt: f.now().UTC(),
			Payload:   body,
		}
		if err := f.cache.Put(ctx, entry); err != nil {
			logging.Warn().Err(err).Str("dataset", dataset).Msg("Snapshot cache write failed")
		}
	}
	return t, v, nil
}
