// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/logging"
	"github.com/tomtom215/gamebot/internal/metrics"
)

// maxPayloadBytes bounds a single download.
const maxPayloadBytes = 256 << 20

// response is a fully read HTTP response.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// upstreamClient performs rate limited, circuit-broken HTTP requests with
// retry on HTTP 429.
type upstreamClient struct {
	http           *http.Client
	limiter        *rate.Limiter
	cb             *gobreaker.CircuitBreaker[*response]
	maxRetries     int
	retryBaseDelay time.Duration
	token          string
}

func newUpstreamClient(cfg *config.SourceConfig, httpClient *http.Client) *upstreamClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	const cbName = "survivor-upstream"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		// A snapshot is a handful of requests, so trip on consecutive
		// failures rather than a ratio.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx other than 429 are answers, not outages.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Upstream circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})

	return &upstreamClient{
		http:           httpClient,
		limiter:        rate.NewLimiter(limit, 1),
		cb:             cb,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: baseDelay,
		token:          cfg.GitHubToken,
	}
}

// do performs method on url. Non-2xx responses become *StatusError. When
// github is set the API headers and token are sent.
func (c *upstreamClient) do(ctx context.Context, method, url string, github bool) (*response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.cb.Execute(func() (*response, error) {
			return c.roundTrip(ctx, method, url, github)
		})
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
			return resp, err
		}

		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("rate limit exceeded after %d retries: %w", c.maxRetries, err)
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if resp != nil {
			if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs >= 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		metrics.FetchTotal.WithLabelValues("retried").Inc()
		logging.Warn().Str("url", url).Dur("retry_delay", delay).Int("attempt", attempt+1).
			Msg("Upstream rate limited (HTTP 429), retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *upstreamClient) roundTrip(ctx context.Context, method, url string, github bool) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if github {
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	out := &response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The response rides along so 429 handling can read Retry-After.
		return out, &StatusError{StatusCode: resp.StatusCode}
	}
	return out, nil
}
