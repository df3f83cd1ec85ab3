// Package bank loads and validates instrument bank files.
//
// A bank is the data the substitution-map generator works from: one entry
// per instrument index carrying a patch name and resident size, the
// similarity groups (leader listed first), and a usage section naming where
// the raw usage counts come from. Banks are written in TOML, JSON, or YAML;
// [Load] picks the codec from the file extension. A reference bank is
// embedded in the binary and used when a project configures no bank file.
package bank

import (
	"errors"
	"fmt"

	"respack/internal/bankmap"
)

// Usage count sources a bank or project config may name.
const (
	// SourceBank reads the counts inline from the bank's usage section.
	SourceBank = "bank"
	// SourceFile reads a local JSON array of counts.
	SourceFile = "file"
	// SourceURL fetches a JSON array of counts over HTTP.
	SourceURL = "url"
)

// Instrument is one bank entry.
type Instrument struct {
	// Index is the instrument's slot. Indices below the configured melodic
	// count are melodic, the rest percussion. Indices must cover 0..n-1.
	Index int `toml:"index" json:"index" yaml:"index"`
	// Patch is the unique sample file name.
	Patch string `toml:"patch" json:"patch" yaml:"patch"`
	// Size is the resident size in bytes.
	Size int64 `toml:"size" json:"size" yaml:"size"`
}

// UsageSpec says where the raw usage counts come from. The project config's
// stats section, when set, overrides this.
type UsageSpec struct {
	// Source is one of [SourceBank], [SourceFile], [SourceURL], or empty.
	Source string `toml:"source,omitempty" json:"source,omitempty" yaml:"source,omitempty"`
	// Counts holds the inline counts for [SourceBank], one per instrument,
	// ordered by index.
	Counts []int64 `toml:"counts,omitempty" json:"counts,omitempty" yaml:"counts,omitempty"`
	// File is the local path for [SourceFile].
	File string `toml:"file,omitempty" json:"file,omitempty" yaml:"file,omitempty"`
	// URL is the endpoint for [SourceURL].
	URL string `toml:"url,omitempty" json:"url,omitempty" yaml:"url,omitempty"`
}

// Bank is a parsed instrument bank file.
type Bank struct {
	// Version is the bank schema version.
	Version int `toml:"version" json:"version" yaml:"version"`
	// Instruments is the instrument table.
	Instruments []Instrument `toml:"instruments" json:"instruments" yaml:"instruments"`
	// Groups lists the similarity groups by member patch name, leader first.
	// Instruments absent from every group are their own singleton group.
	Groups [][]string `toml:"groups,omitempty" json:"groups,omitempty" yaml:"groups,omitempty"`
	// Usage says where usage counts come from.
	Usage UsageSpec `toml:"usage,omitempty" json:"usage,omitempty" yaml:"usage,omitempty"`
}

// Validate checks the bank's internal consistency: contiguous unique
// indices, unique nonempty patch names, positive sizes, groups that resolve
// to declared patches with no double membership, and a coherent usage
// section. A group member without a table entry fails with
// [bankmap.ErrUnknownPatch].
func (b *Bank) Validate() error {
	n := len(b.Instruments)
	if n == 0 {
		return errors.New("bank has no instruments")
	}

	seenIndex := make(map[int]bool, n)
	seenPatch := make(map[string]bool, n)
	for _, in := range b.Instruments {
		if in.Patch == "" {
			return fmt.Errorf("instrument %d has no patch name", in.Index)
		}
		if in.Size <= 0 {
			return fmt.Errorf("patch %q: size %d, want positive bytes", in.Patch, in.Size)
		}
		if in.Index < 0 || in.Index >= n {
			return fmt.Errorf("patch %q: index %d outside 0..%d", in.Patch, in.Index, n-1)
		}
		if seenIndex[in.Index] {
			return fmt.Errorf("duplicate instrument index %d", in.Index)
		}
		if seenPatch[in.Patch] {
			return fmt.Errorf("duplicate patch name %q", in.Patch)
		}
		seenIndex[in.Index] = true
		seenPatch[in.Patch] = true
	}

	grouped := make(map[string]bool)
	for gi, g := range b.Groups {
		if len(g) == 0 {
			return fmt.Errorf("group %d is empty", gi)
		}
		for _, member := range g {
			if !seenPatch[member] {
				return fmt.Errorf("group %d: member %q: %w", gi, member, bankmap.ErrUnknownPatch)
			}
			if grouped[member] {
				return fmt.Errorf("patch %q belongs to more than one group", member)
			}
			grouped[member] = true
		}
	}

	switch b.Usage.Source {
	case "", SourceBank, SourceFile, SourceURL:
	default:
		return fmt.Errorf("usage source %q, want %q, %q, or %q", b.Usage.Source, SourceBank, SourceFile, SourceURL)
	}
	if b.Usage.Source == SourceBank && len(b.Usage.Counts) == 0 {
		return errors.New(`usage source "bank" has no inline counts`)
	}
	if b.Usage.Source == SourceFile && b.Usage.File == "" {
		return errors.New(`usage source "file" has no file path`)
	}
	if b.Usage.Source == SourceURL && b.Usage.URL == "" {
		return errors.New(`usage source "url" has no url`)
	}
	if len(b.Usage.Counts) > 0 && len(b.Usage.Counts) != n {
		return fmt.Errorf("%d usage counts for %d instruments", len(b.Usage.Counts), n)
	}
	for i, c := range b.Usage.Counts {
		if c < 0 {
			return fmt.Errorf("usage count %d for instrument %d, want nonnegative", c, i)
		}
	}
	return nil
}

// TableInstruments converts the bank entries to the prioritizer's input
// type.
func (b *Bank) TableInstruments() []bankmap.Instrument {
	ins := make([]bankmap.Instrument, len(b.Instruments))
	for i, in := range b.Instruments {
		ins[i] = bankmap.Instrument{Index: in.Index, Patch: in.Patch, Size: in.Size}
	}
	return ins
}

// BuildTable resolves the bank plus one set of usage counts into a ranked
// substitution table.
func (b *Bank) BuildTable(usage []int64, opts bankmap.Options) (*bankmap.Table, error) {
	return bankmap.NewTable(b.TableInstruments(), b.Groups, usage, opts)
}
