// Package stats tests cover source resolution against bank and config,
// count validation, file/URL loading, the cache fallback chain, and cache
// round-tripping.
package stats

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"respack/internal/bank"
	"respack/internal/paths"
)

// ///////////////////////////////////////////////
// Resolve
// ///////////////////////////////////////////////

func TestResolveBankImplicit(t *testing.T) {
	b := &bank.Bank{Usage: bank.UsageSpec{Counts: []int64{10, 5, 20}}}

	spec, err := Resolve(Override{}, b)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if spec.Source != bank.SourceBank {
		t.Errorf("Source = %q, want %q", spec.Source, bank.SourceBank)
	}
	if len(spec.Counts) != 3 {
		t.Errorf("Counts length = %d, want 3", len(spec.Counts))
	}
}

func TestResolveBankExplicit(t *testing.T) {
	b := &bank.Bank{Usage: bank.UsageSpec{
		Source: bank.SourceBank,
		Counts: []int64{1, 2},
	}}

	spec, err := Resolve(Override{}, b)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if spec.Source != bank.SourceBank {
		t.Errorf("Source = %q, want %q", spec.Source, bank.SourceBank)
	}
}

func TestResolveOverrideWins(t *testing.T) {
	b := &bank.Bank{Usage: bank.UsageSpec{
		Source: bank.SourceURL,
		URL:    "https://example.com/bank-stats.json",
	}}

	spec, err := Resolve(Override{Source: bank.SourceFile, File: "local.json"}, b)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if spec.Source != bank.SourceFile {
		t.Errorf("Source = %q, want %q (override should win)", spec.Source, bank.SourceFile)
	}
	if spec.File != "local.json" {
		t.Errorf("File = %q, want %q", spec.File, "local.json")
	}
}

func TestResolveBankURL(t *testing.T) {
	b := &bank.Bank{Usage: bank.UsageSpec{
		Source: bank.SourceURL,
		URL:    "https://example.com/stats.json",
	}}

	spec, err := Resolve(Override{}, b)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if spec.URL != "https://example.com/stats.json" {
		t.Errorf("URL = %q, want bank URL", spec.URL)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name     string
		override Override
		usage    bank.UsageSpec
	}{
		{"no source no counts", Override{}, bank.UsageSpec{}},
		{"bank without counts", Override{Source: bank.SourceBank}, bank.UsageSpec{}},
		{"file without path", Override{Source: bank.SourceFile}, bank.UsageSpec{}},
		{"url without url", Override{Source: bank.SourceURL}, bank.UsageSpec{}},
		{"unknown source", Override{Source: "oracle"}, bank.UsageSpec{}},
		{"bank declares file without path", Override{}, bank.UsageSpec{Source: bank.SourceFile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &bank.Bank{Usage: tt.usage}
			if _, err := Resolve(tt.override, b); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ///////////////////////////////////////////////
// Bank Source
// ///////////////////////////////////////////////

func TestLoadBankSource(t *testing.T) {
	spec := Spec{Source: bank.SourceBank, Counts: []int64{10, 5, 20}}

	counts, err := Load(context.Background(), spec, 3, t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(counts) != 3 || counts[2] != 20 {
		t.Errorf("counts = %v, want [10 5 20]", counts)
	}
}

func TestLoadBankSourceWrongLength(t *testing.T) {
	spec := Spec{Source: bank.SourceBank, Counts: []int64{10, 5}}

	if _, err := Load(context.Background(), spec, 3, t.TempDir()); err == nil {
		t.Error("expected error for count/instrument mismatch")
	}
}

func TestLoadBankSourceNegativeCount(t *testing.T) {
	spec := Spec{Source: bank.SourceBank, Counts: []int64{10, -1, 20}}

	if _, err := Load(context.Background(), spec, 3, t.TempDir()); err == nil {
		t.Error("expected error for negative count")
	}
}

// ///////////////////////////////////////////////
// File Source
// ///////////////////////////////////////////////

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")
	os.WriteFile(path, []byte(`[100, 0, 42]`), 0o644)

	counts, err := loadFromFile(path, 3)
	if err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if counts[0] != 100 || counts[2] != 42 {
		t.Errorf("counts = %v, want [100 0 42]", counts)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := loadFromFile(filepath.Join(t.TempDir(), "no-such.json"), 3)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")
	os.WriteFile(path, []byte(`{"counts": "oops"}`), 0o644)

	if _, err := loadFromFile(path, 3); err == nil {
		t.Error("expected error for malformed stats file")
	}
}

func TestLoadFileSourceWritesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")
	os.WriteFile(path, []byte(`[7, 8, 9]`), 0o644)
	cacheDir := filepath.Join(dir, "cache")

	spec := Spec{Source: bank.SourceFile, File: path}
	if _, err := Load(context.Background(), spec, 3, cacheDir); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// A successful primary load should leave a cache behind.
	if _, err := os.Stat(filepath.Join(cacheDir, paths.StatsCacheFile)); err != nil {
		t.Errorf("stats cache not written: %v", err)
	}
}

// ///////////////////////////////////////////////
// URL Source (via httptest)
// ///////////////////////////////////////////////

func TestLoadFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[3, 1, 4, 1, 5]`))
	}))
	defer server.Close()

	counts, err := loadFromURL(context.Background(), server.URL, 5)
	if err != nil {
		t.Fatalf("loadFromURL: %v", err)
	}
	if len(counts) != 5 || counts[4] != 5 {
		t.Errorf("counts = %v, want [3 1 4 1 5]", counts)
	}
}

func TestLoadFromURL_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := loadFromURL(context.Background(), server.URL, 3); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestLoadFromURL_WrongLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1, 2]`))
	}))
	defer server.Close()

	if _, err := loadFromURL(context.Background(), server.URL, 3); err == nil {
		t.Fatal("expected error for count/instrument mismatch")
	}
}

// ///////////////////////////////////////////////
// Fallback Chain
// ///////////////////////////////////////////////

func TestLoadWithFallback_PrimaryFailsCacheFallback(t *testing.T) {
	cacheDir := t.TempDir()

	// Pre-populate the cache so the fallback finds it.
	if err := WriteCache(cacheDir, []int64{10, 20, 30}); err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	// Primary always fails.
	counts, err := loadWithFallback(cacheDir, 3, func() ([]int64, error) {
		return nil, fmt.Errorf("simulated primary failure")
	})
	if counts == nil {
		t.Fatal("expected counts from cache fallback, got nil")
	}
	if err == nil {
		t.Fatal("expected non-nil error indicating fallback was used")
	}
	if counts[1] != 20 {
		t.Errorf("cached counts = %v, want [10 20 30]", counts)
	}
}

func TestLoadWithFallback_PrimaryAndCacheFailReturnsNil(t *testing.T) {
	// Use a temp dir with no cache file.
	cacheDir := t.TempDir()

	counts, err := loadWithFallback(cacheDir, 3, func() ([]int64, error) {
		return nil, fmt.Errorf("simulated primary failure")
	})
	if counts != nil {
		t.Fatal("expected nil counts when both sources fail, got non-nil")
	}
	if err == nil {
		t.Fatal("expected non-nil error when both sources fail")
	}
}

func TestLoadWithFallback_StaleCacheLengthRejected(t *testing.T) {
	cacheDir := t.TempDir()

	// Cache from an older bank with a different instrument count.
	if err := WriteCache(cacheDir, []int64{1, 2}); err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	counts, err := loadWithFallback(cacheDir, 3, func() ([]int64, error) {
		return nil, fmt.Errorf("simulated primary failure")
	})
	if counts != nil {
		t.Fatal("expected stale cache to be rejected")
	}
	if err == nil {
		t.Fatal("expected error when cache length mismatches")
	}
}

func TestLoadURLSourceFallsBackToCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	if err := WriteCache(cacheDir, []int64{5, 5, 5}); err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	spec := Spec{Source: bank.SourceURL, URL: server.URL}
	counts, err := Load(context.Background(), spec, 3, cacheDir)
	if counts == nil {
		t.Fatal("expected cached counts, got nil")
	}
	if err == nil {
		t.Fatal("expected non-nil error flagging cache use")
	}
	if counts[0] != 5 {
		t.Errorf("counts = %v, want cached [5 5 5]", counts)
	}
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

func TestWriteAndReadCache(t *testing.T) {
	dir := t.TempDir()

	if err := WriteCache(dir, []int64{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	loaded, err := ReadCache(dir)
	if err != nil {
		t.Fatalf("ReadCache: %v", err)
	}
	if len(loaded) != 4 || loaded[3] != 4 {
		t.Errorf("loaded = %v, want [1 2 3 4]", loaded)
	}
}

func TestReadCacheMissing(t *testing.T) {
	_, err := ReadCache(t.TempDir())
	if err == nil {
		t.Error("expected error for missing cache, got nil")
	}
}

func TestWriteCacheEmpty(t *testing.T) {
	if err := WriteCache(t.TempDir(), nil); err == nil {
		t.Error("expected error caching empty counts")
	}
}

func TestWriteCacheCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	if err := WriteCache(dir, []int64{9}); err != nil {
		t.Fatalf("WriteCache into missing dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, paths.StatsCacheFile)); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
}

// ///////////////////////////////////////////////
// Unresolvable Source
// ///////////////////////////////////////////////

func TestLoadUnknownSource(t *testing.T) {
	spec := Spec{Source: "oracle"}
	if _, err := Load(context.Background(), spec, 3, t.TempDir()); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
