package bank

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"respack"
	"respack/internal/migrate"
)

// ///////////////////////////////////////////////
// Parsing
// ///////////////////////////////////////////////

// Parse decodes bank bytes in the codec named by ext (".toml", ".json",
// ".yaml", or ".yml", case-insensitive).
func Parse(data []byte, ext string) (*Bank, error) {
	var b Bank
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported bank format %q, want .toml, .json, .yaml, or .yml", ext)
	}
	return &b, nil
}

// PeekVersion reads just the version field from raw bank bytes.
// Returns 1 if the field is missing or unreadable; the full parse reports
// real syntax errors.
func PeekVersion(data []byte, ext string) int {
	var v struct {
		Version int `toml:"version" json:"version" yaml:"version"`
	}
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &v); err != nil {
			return 1
		}
	case ".json":
		if err := json.Unmarshal(data, &v); err != nil {
			return 1
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return 1
		}
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// Load reads, migrates, parses, and validates a bank file. Migrations are
// applied in memory only; the file on disk is never rewritten.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank file: %w", err)
	}
	ext := filepath.Ext(path)

	version := PeekVersion(data, ext)
	if version != migrate.Bank.CurrentVersion {
		data, _, err = migrate.Bank.Run(data, version)
		if err != nil {
			return nil, fmt.Errorf("migrate bank %s: %w", path, err)
		}
	}

	b, err := Parse(data, ext)
	if err != nil {
		return nil, fmt.Errorf("parse bank %s: %w", path, err)
	}
	b.Version = migrate.Bank.CurrentVersion

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("bank %s: %w", path, err)
	}
	return b, nil
}

// LoadDefault parses the reference bank embedded in the binary.
func LoadDefault() (*Bank, error) {
	b, err := Parse(respack.DefaultBankTOML, ".toml")
	if err != nil {
		return nil, fmt.Errorf("parse embedded bank: %w", err)
	}
	b.Version = migrate.Bank.CurrentVersion
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("embedded bank: %w", err)
	}
	return b, nil
}
