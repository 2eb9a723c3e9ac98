// Gamebot - Survivor Dataset Medallion Warehouse
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gamebot

package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gamebot/internal/config"
	"github.com/tomtom215/gamebot/internal/logging"
)

// Origin identifies one upstream export of the datasets.
type Origin struct {
	// Name is primary or json.
	Name string

	// BaseURL is the raw file directory.
	BaseURL string

	// Extension is appended to the dataset name.
	Extension string

	// RepoPath is the repository-relative directory used for commit lookups.
	RepoPath string

	// Decodable reports whether the payload format can be decoded.
	Decodable bool
}

// Origin names.
const (
	OriginPrimary = "primary"
	OriginJSON    = "json"
)

// FileURL returns the download URL of dataset.
func (o Origin) FileURL(dataset string) string {
	return strings.TrimRight(o.BaseURL, "/") + "/" + dataset + o.Extension
}

// FilePath returns the repository path of dataset.
func (o Origin) FilePath(dataset string) string {
	return o.RepoPath + "/" + dataset + o.Extension
}

// Source is the upstream repository and the datasets to take from it.
type Source struct {
	// Origins in preference order; the first wins ties.
	Origins []Origin

	// CommitsAPIURL is the commits endpoint for revision metadata. Empty
	// disables commit lookups and the first decodable origin is used.
	CommitsAPIURL string

	Datasets []string
}

// SourceFromConfig builds the survivoR source: the R data directory as the
// primary origin and the JSON exports as the second.
func SourceFromConfig(cfg *config.SourceConfig) Source {
	src := Source{CommitsAPIURL: cfg.CommitsAPIURL, Datasets: cfg.Datasets}
	if cfg.BaseRawURL != "" {
		src.Origins = append(src.Origins, Origin{
			Name: OriginPrimary, BaseURL: cfg.BaseRawURL, Extension: ".rda", RepoPath: "data",
		})
	}
	if cfg.JSONRawURL != "" {
		src.Origins = append(src.Origins, Origin{
			Name: OriginJSON, BaseURL: cfg.JSONRawURL, Extension: ".json", RepoPath: "dev/json", Decodable: true,
		})
	}
	return src
}

// Location is a human-readable description of the source.
func (s Source) Location() string {
	urls := make([]string, len(s.Origins))
	for i, o := range s.Origins {
		urls[i] = o.BaseURL
	}
	return strings.Join(urls, ", ")
}

// CommitInfo is the latest upstream commit touching a file.
type CommitInfo struct {
	SHA         string    `json:"sha,omitempty"`
	URL         string    `json:"url,omitempty"`
	CommittedAt time.Time `json:"committed_at,omitempty"`
}

// DatasetVersion is the upstream revision chosen for one dataset.
type DatasetVersion struct {
	Dataset   string     `json:"dataset"`
	Origin    string     `json:"origin"`
	URL       string     `json:"url"`
	Signature string     `json:"signature"`
	Commit    CommitInfo `json:"commit"`

	// FromCache is set when the payload was served from the cache.
	FromCache bool `json:"from_cache"`
}

type commitPayload struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Author struct {
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// latestCommit asks the commits API for the newest commit touching path.
// Failures are logged and yield an empty CommitInfo.
func (f *Fetcher) latestCommit(ctx context.Context, apiURL, path string) CommitInfo {
	u, err := url.Parse(apiURL)
	if err != nil {
		return CommitInfo{}
	}
	q := u.Query()
	q.Set("path", path)
	q.Set("per_page", "1")
	u.RawQuery = q.Encode()

	resp, err := f.client.do(ctx, http.MethodGet, u.String(), true)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Could not fetch commit metadata")
		return CommitInfo{}
	}
	var commits []commitPayload
	if err := json.Unmarshal(resp.Body, &commits); err != nil || len(commits) == 0 {
		return CommitInfo{}
	}
	info := CommitInfo{SHA: commits[0].SHA, URL: commits[0].HTMLURL}
	if ts, err := time.Parse(time.RFC3339, commits[0].Commit.Author.Date); err == nil {
		info.CommittedAt = ts.UTC()
	}
	return info
}

type candidate struct {
	origin Origin
	commit CommitInfo
}

// selectOrigin picks the origin whose file changed most recently. Ties and
// missing timestamps go to the earlier origin. An undecodable winner falls
// back to the freshest decodable origin.
func (f *Fetcher) selectOrigin(ctx context.Context, src Source, dataset string) (candidate, error) {
	cands := make([]candidate, 0, len(src.Origins))
	for _, o := range src.Origins {
		c := candidate{origin: o}
		if src.CommitsAPIURL != "" {
			c.commit = f.latestCommit(ctx, src.CommitsAPIURL, o.FilePath(dataset))
		}
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].commit.CommittedAt.After(cands[j].commit.CommittedAt)
	})
	if len(cands) == 0 {
		return candidate{}, fmt.Errorf("no origins configured")
	}

	for _, c := range cands {
		if c.origin.Decodable {
			if c.origin.Name != cands[0].origin.Name {
				logging.Debug().Str("dataset", dataset).Str("freshest", cands[0].origin.Name).
					Str("using", c.origin.Name).Msg("Freshest export format is not decodable, using next")
			}
			return c, nil
		}
	}
	return candidate{}, fmt.Errorf("no decodable origin among %d configured", len(cands))
}

// probeSignature derives a revision signature for url from HEAD validators,
// falling back to a sha256 of the body. The body is returned when it had to
// be downloaded.
func (f *Fetcher) probeSignature(ctx context.Context, url string) (string, []byte, error) {
	resp, err := f.client.do(ctx, http.MethodHead, url, false)
	if err == nil {
		var parts []string
		for _, h := range []string{"ETag", "Last-Modified", "Content-Length"} {
			if v := resp.Header.Get(h); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "|"), nil, nil
		}
	} else {
		logging.Debug().Err(err).Str("url", url).Msg("HEAD request failed, falling back to GET")
	}

	resp, err = f.client.do(ctx, http.MethodGet, url, false)
	if err != nil {
		return "", nil, err
	}
	return bodySignature(resp.Body), resp.Body, nil
}

func bodySignature(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// CombinedSignature hashes the sorted per-dataset signatures.
func CombinedSignature(versions map[string]DatasetVersion) string {
	names := make([]string, 0, len(versions))
	for n := range versions {
		names = append(names, n)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		v := versions[n]
		fmt.Fprintf(h, "%s=%s:%s\n", n, v.Origin, v.Signature)
	}
	return hex.EncodeToString(h.Sum(nil))
}
