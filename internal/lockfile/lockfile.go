// Package lockfile enforces single-instance execution through a locked PID
// file. Watch mode holds the lock for its whole run so two builders never
// race on the same project's outputs.
//
// The file content is "PID:TOKEN"; the random token proves ownership so
// [Lock.Release] only deletes a file this instance wrote. The advisory lock
// (flock on Unix, LockFileEx on Windows) is what actually excludes a second
// instance; the PID is informational for error messages.
package lockfile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Lock is a held single-instance lock. The file handle stays open for the
// lifetime of the lock.
type Lock struct {
	path  string
	token string
	f     *os.File
}

// newToken generates a random 16-character hex token used to prove ownership
// of the PID file.
func newToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Acquire creates or opens the PID file at path, takes the advisory lock,
// and writes "PID:TOKEN" content. Fails immediately if another process
// holds the lock. Callers must keep the returned Lock until [Lock.Release].
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	token := newToken()
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{path: path, token: token, f: f}, nil
}

// Release unlocks and closes the file handle, then removes the PID file
// only if the stored token matches, preventing removal of a file owned by
// a different instance.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	if l.f != nil {
		_ = unlockFile(l.f)
		l.f.Close()
		l.f = nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == l.token {
		os.Remove(l.path)
	}
}

// Check reports whether another instance holds the lock at path. It attempts
// to acquire the advisory lock; if that fails, another instance is alive and
// its PID (if readable) is returned. If the lock succeeds, any previous
// instance is dead and the stale file is cleaned up.
func Check(path string) (alive bool, pid int) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(path)
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(path)
	return false, 0
}
