// Package stats acquires the raw instrument usage counts the prioritizer
// ranks by.
//
// Counts can come from three source types: inline from the bank file, a
// local JSON file, or a remote URL (projects that regenerate statistics
// centrally publish them as a plain JSON array). For file and URL sources a
// double-fallback strategy applies: primary source, then the on-disk cache
// written on the last successful load. If both fail, the build aborts;
// stale statistics are better than none, but no statistics rank nothing.
//
// [Resolve] merges the project config's stats section with the bank's usage
// section into a [Spec]; [Load] is the main entry point.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"respack/internal/atomicfile"
	"respack/internal/bank"
	"respack/internal/paths"
)

// httpClient is a lazily-initialized retryablehttp client shared across all
// URL loads. Initialized once via httpClientOnce.
var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

// getHTTPClient returns the shared retryable HTTP client, initializing it
// on first call.
func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 10 * time.Second
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Spec is the resolved usage-count source for one run.
type Spec struct {
	Source string // bank.SourceBank, bank.SourceFile, or bank.SourceURL
	Counts []int64
	File   string
	URL    string
}

// Override carries the project config's stats section. An empty Source
// defers to the bank's usage section.
type Override struct {
	Source string
	File   string
	URL    string
}

// Resolve merges the config override with the bank's usage section. The
// override wins when it names a source; otherwise the bank decides. A bank
// with inline counts and no explicit source behaves as source "bank".
func Resolve(o Override, b *bank.Bank) (Spec, error) {
	src := o.Source
	file := o.File
	url := o.URL
	if src == "" {
		src = b.Usage.Source
		file = b.Usage.File
		url = b.Usage.URL
		if src == "" {
			if len(b.Usage.Counts) == 0 {
				return Spec{}, errors.New("no usage source: bank has neither a usage source nor inline counts")
			}
			src = bank.SourceBank
		}
	}

	spec := Spec{Source: src, Counts: b.Usage.Counts, File: file, URL: url}
	switch src {
	case bank.SourceBank:
		if len(spec.Counts) == 0 {
			return Spec{}, errors.New(`usage source "bank" selected but the bank has no inline counts`)
		}
	case bank.SourceFile:
		if spec.File == "" {
			return Spec{}, errors.New(`usage source "file" selected but no file configured`)
		}
	case bank.SourceURL:
		if spec.URL == "" {
			return Spec{}, errors.New(`usage source "url" selected but no url configured`)
		}
	default:
		return Spec{}, fmt.Errorf("usage source %q, want %q, %q, or %q", src, bank.SourceBank, bank.SourceFile, bank.SourceURL)
	}
	return spec, nil
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Load returns n usage counts, one per instrument index, from the resolved
// source.
//
// For file and URL sources, uses double fallback: primary, then the cache
// under cacheDir. The returned error is non-nil but the counts usable when
// the data came from the cache fallback; callers that insist on fresh data
// can treat it as fatal.
func Load(ctx context.Context, spec Spec, n int, cacheDir string) ([]int64, error) {
	switch spec.Source {
	case bank.SourceBank:
		return validate(spec.Counts, n)
	case bank.SourceFile:
		return loadWithFallback(cacheDir, n, func() ([]int64, error) {
			return loadFromFile(spec.File, n)
		})
	case bank.SourceURL:
		return loadWithFallback(cacheDir, n, func() ([]int64, error) {
			return loadFromURL(ctx, spec.URL, n)
		})
	default:
		return nil, fmt.Errorf("usage source %q not resolvable", spec.Source)
	}
}

// validate checks count and range; counts pass through unchanged.
func validate(counts []int64, n int) ([]int64, error) {
	if len(counts) != n {
		return nil, fmt.Errorf("%d usage counts for %d instruments", len(counts), n)
	}
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("usage count %d for instrument %d, want nonnegative", c, i)
		}
	}
	return counts, nil
}

// ///////////////////////////////////////////////
// Fallback Logic
// ///////////////////////////////////////////////

// loadWithFallback attempts the primary load, then the cache.
// Returns nil with an error when both fail.
func loadWithFallback(cacheDir string, n int, primary func() ([]int64, error)) ([]int64, error) {
	counts, err := primary()
	if err == nil {
		if cacheErr := WriteCache(cacheDir, counts); cacheErr != nil {
			slog.Warn("failed to write usage stats cache", "error", cacheErr)
		}
		return counts, nil
	}
	slog.Warn("failed to load usage stats from primary source, trying cache", "error", err)

	cached, cacheErr := ReadCache(cacheDir)
	if cacheErr == nil {
		if cached, cacheErr = validate(cached, n); cacheErr == nil {
			return cached, fmt.Errorf("using cached usage stats: primary load failed: %w", err)
		}
	}
	slog.Warn("no usable usage stats cache", "error", cacheErr)

	return nil, fmt.Errorf("all usage stats sources failed: primary: %w; cache: %w", err, cacheErr)
}

// loadFromFile reads counts from a local JSON array.
func loadFromFile(path string, n int) ([]int64, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read usage stats file %s: %w", path, err)
	}
	counts, err := parseBody(body)
	if err != nil {
		return nil, fmt.Errorf("usage stats file %s: %w", path, err)
	}
	return validate(counts, n)
}

// loadFromURL downloads counts from the given URL.
func loadFromURL(ctx context.Context, url string, n int) ([]int64, error) {
	const maxResponseBytes = 1 << 20 // 1 MiB

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, maxResponseBytes)
	}

	counts, err := parseBody(body)
	if err != nil {
		return nil, fmt.Errorf("usage stats from %s: %w", url, err)
	}
	return validate(counts, n)
}

// parseBody decodes a plain JSON array of counts.
func parseBody(body []byte) ([]int64, error) {
	var counts []int64
	if err := json.Unmarshal(body, &counts); err != nil {
		return nil, fmt.Errorf("parsing usage stats: %w", err)
	}
	return counts, nil
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

// WriteCache writes counts to the stats cache file in the given directory.
func WriteCache(cacheDir string, counts []int64) error {
	if len(counts) == 0 {
		return errors.New("no usage counts to cache")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("creating stats cache directory: %w", err)
	}
	path := filepath.Join(cacheDir, paths.StatsCacheFile)
	b, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshalling usage counts: %w", err)
	}
	return atomicfile.Write(path, b, 0o644)
}

// ReadCache reads counts from the stats cache file in the given directory.
func ReadCache(cacheDir string) ([]int64, error) {
	path := filepath.Join(cacheDir, paths.StatsCacheFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stats cache: %w", err)
	}
	counts, err := parseBody(b)
	if err != nil {
		return nil, fmt.Errorf("stats cache: %w", err)
	}
	return counts, nil
}
