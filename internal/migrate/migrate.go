// Package migrate applies sequential schema migrations to on-disk data
// files, upgrading them from one version to the next.
//
// Each file schema (project config, instrument bank) owns a [Registry] so
// version numbers and migration lists stay independent.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
)

// Migration upgrades raw file bytes from the prior schema version to
// [Migration.Version].
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short label for log output.
	Description string
	// Upgrade transforms data from the prior version.
	Upgrade func(data []byte) ([]byte, error)
}

// Registry holds the current version and registered migrations for one
// schema target.
type Registry struct {
	// CurrentVersion is the latest schema version this registry targets.
	CurrentVersion int
	// Migrations is the ordered list of versioned upgrades. Exported so
	// tests can install migration lists on a scratch registry.
	Migrations []Migration
}

// Register appends a migration. It panics on a duplicate version so
// conflicting upgrades fail at init, not at load time.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (%q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// Run applies the registered migrations sequentially where
// fromVersion < m.Version. Returns the transformed data, the final version
// reached, and any error. Reaching a version below
// [Registry.CurrentVersion] means the chain is incomplete and the caller
// should reject the file.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	sorted := make([]Migration, len(r.Migrations))
	copy(sorted, r.Migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	version := fromVersion
	for _, m := range sorted {
		if version < m.Version {
			slog.Info("applying migration", "version", m.Version, "description", m.Description)
			var err error
			data, err = m.Upgrade(data)
			if err != nil {
				return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
			}
			version = m.Version
		}
	}
	if version != r.CurrentVersion {
		return nil, version, fmt.Errorf("no migration path from v%d to v%d", fromVersion, r.CurrentVersion)
	}
	return data, version, nil
}

// Config is the migration registry for respack.toml project files.
var Config = &Registry{CurrentVersion: 1}

// Bank is the migration registry for instrument bank files.
var Bank = &Registry{CurrentVersion: 1}
