// Package respack provides the embedded default data for the resource
// package build tools.
//
// The root package exists solely to embed respack.default.toml and
// bank.default.toml. The generators fall back to these when a project
// supplies no config or bank file, and genbankmap -init copies them into a
// fresh project.
package respack

import _ "embed"

// DefaultConfigTOML holds the raw bytes of respack.default.toml, the
// annotated project configuration generated by cmd/genconfig.
//
//go:embed respack.default.toml
var DefaultConfigTOML []byte

// DefaultBankTOML holds the raw bytes of bank.default.toml, the reference
// instrument bank: 128 melodic patches, 47 percussion patches, the
// reference similarity groups, and inline usage counts.
//
//go:embed bank.default.toml
var DefaultBankTOML []byte
