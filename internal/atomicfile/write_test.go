// write_test.go tests [Write] and [WriteMkdir] for basic correctness,
// concurrent safety across distinct files, and cleanup of temp files on
// failure.

package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWriteBasic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bankmap.cfg")
	data := []byte("  0,   0,   0,   0,   0, acpiano\n")

	if err := Write(path, data, 0o644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestWriteConcurrent(t *testing.T) {
	dir := t.TempDir()
	const n = 20

	// Each goroutine writes to its own file to avoid OS-level rename
	// contention (Windows does not permit atomic rename over a target
	// that is open by another process).
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			path := filepath.Join(dir, fmt.Sprintf("out-%02d.cfg", i))
			data := []byte(fmt.Sprintf("writer-%02d", i))
			if err := Write(path, data, 0o644); err != nil {
				t.Errorf("concurrent Write %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// All files must exist, be readable, and contain expected data.
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("out-%02d.cfg", i))
		want := fmt.Sprintf("writer-%02d", i)
		got, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("ReadFile %d: %v", i, err)
			continue
		}
		if string(got) != want {
			t.Errorf("file %d: got %q, want %q", i, got, want)
		}
	}

	// No temp files should remain.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if matched, _ := filepath.Match("*.tmp.*", e.Name()); matched {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWrite_OverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overwrite.cfg")

	if err := Write(path, []byte("original"), 0o644); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(path, []byte("updated"), 0o644); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "updated" {
		t.Errorf("content = %q, want %q", got, "updated")
	}
}

func TestWrite_Permissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perms.json")

	if err := Write(path, []byte("[1,2,3]"), 0o600); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	// On Windows, permission bits are limited; check that the file is at least
	// not world-readable (Go maps 0o600 to read-write on Windows).
	got := info.Mode().Perm()
	if got&0o600 == 0 {
		t.Errorf("permissions = %o, expected at least owner rw", got)
	}
}

func TestWriteCleanupOnFailure(t *testing.T) {
	// Attempt to write into a non-existent directory; should fail
	// and not leave temp files anywhere accessible.
	badPath := filepath.Join(t.TempDir(), "no-such-dir", "file.cfg")

	err := Write(badPath, []byte("data"), 0o644)
	if err == nil {
		t.Fatal("expected error writing to non-existent directory")
	}

	// Verify no temp files were left in the parent that does exist.
	parent := filepath.Dir(filepath.Dir(badPath))
	entries, _ := os.ReadDir(parent)
	for _, e := range entries {
		if matched, _ := filepath.Match("file.cfg.tmp.*", e.Name()); matched {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteMkdirCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build", "maps", "bankmap.cfg")

	if err := WriteMkdir(path, []byte("header\n"), 0o644); err != nil {
		t.Fatalf("WriteMkdir failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "header\n" {
		t.Errorf("content = %q, want %q", got, "header\n")
	}
}

func TestWriteMkdirExistingDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.cfg")

	// Parent already exists; WriteMkdir should behave exactly like Write.
	if err := WriteMkdir(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteMkdir failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Stat after WriteMkdir: %v", err)
	}
}
