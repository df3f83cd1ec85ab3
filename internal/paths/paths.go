// Package paths centralizes file and directory names used across the project.
// All project file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Project root file names.
const (
	ConfigFile      = "respack.toml"
	DefaultBankFile = "bank.toml"
	VersionFile     = "VERSION"
)

// Cache directory and its file names. The cache directory lives under the
// project root and holds everything regeneratable or run-scoped.
const (
	CacheDirName   = ".respack"
	LogFile        = "respack.log"
	LockFile       = "respack.lock"
	StatsCacheFile = "usage-stats.json"
)

// DefaultMapFile is the default substitution map output path (relative to
// the project root).
const DefaultMapFile = "bankmap.cfg"

// ///////////////////////////////////////////////
// Project
// ///////////////////////////////////////////////

// Project provides path construction methods rooted at a project directory.
type Project struct {
	Root string
}

// Config returns the full path to the project config file.
func (p Project) Config() string { return filepath.Join(p.Root, ConfigFile) }

// CacheDir returns the full path to the cache directory.
func (p Project) CacheDir() string { return filepath.Join(p.Root, CacheDirName) }

// Log returns the full path to the log file.
func (p Project) Log() string { return filepath.Join(p.CacheDir(), LogFile) }

// Lock returns the full path to the lock file.
func (p Project) Lock() string { return filepath.Join(p.CacheDir(), LockFile) }

// StatsCache returns the full path to the usage stats cache file.
func (p Project) StatsCache() string { return filepath.Join(p.CacheDir(), StatsCacheFile) }

// Version returns the full path to the VERSION file.
func (p Project) Version() string { return filepath.Join(p.Root, VersionFile) }

// Resolve joins a possibly-relative path onto the project root. Absolute
// paths pass through unchanged.
func (p Project) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}
