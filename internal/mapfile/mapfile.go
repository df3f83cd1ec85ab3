// Package mapfile serializes computed substitution mappings into the
// include-style text file the game build consumes.
//
// The format is one line per instrument, index first, then the
// resident-or-substitute index for each budget column, then the patch name:
//
//	  0,   0,   0,   0,   0, acpiano
//	  1,   0,   1,   1,   1, britepno
//
// Lines are sorted by index and preceded by a fixed header comment block.
// Downstream consumers parse this file positionally, so the line format is
// load-bearing and must not change shape.
package mapfile

import (
	"fmt"
	"io"
	"strings"

	"respack/internal/atomicfile"
	"respack/internal/bankmap"
)

// Render writes the mapfile for the given budgets to w. instruments must be
// ordered by index (as returned from a validated bank); mappings must be
// parallel to budgetsKB, each covering every instrument. version appears in
// the header for provenance.
func Render(w io.Writer, instruments []bankmap.Instrument, budgetsKB []int, mappings []bankmap.Mapping, version string) error {
	if len(instruments) == 0 {
		return fmt.Errorf("no instruments to render")
	}
	if len(budgetsKB) == 0 {
		return fmt.Errorf("no budget columns to render")
	}
	if len(mappings) != len(budgetsKB) {
		return fmt.Errorf("%d mappings for %d budgets", len(mappings), len(budgetsKB))
	}
	for i, m := range mappings {
		if len(m) != len(instruments) {
			return fmt.Errorf("mapping for %d KB covers %d of %d instruments", budgetsKB[i], len(m), len(instruments))
		}
	}

	if version == "" {
		version = "dev"
	}
	kbs := make([]string, len(budgetsKB))
	for i, kb := range budgetsKB {
		kbs[i] = fmt.Sprintf("%d", kb)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Instrument substitution map. Generated by genbankmap %s; do not edit.\n", version)
	b.WriteString("# One line per instrument: index, then the resident-or-substitute index\n")
	fmt.Fprintf(&b, "# for each memory budget (%s KB), then the patch name.\n", strings.Join(kbs, ", "))
	b.WriteString("#\n")

	for i, ins := range instruments {
		fmt.Fprintf(&b, "%3d", ins.Index)
		for _, m := range mappings {
			fmt.Fprintf(&b, ", %3d", m[i])
		}
		fmt.Fprintf(&b, ", %s\n", ins.Patch)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Write renders the mapfile and writes it atomically to path, creating the
// output directory if needed.
func Write(path string, instruments []bankmap.Instrument, budgetsKB []int, mappings []bankmap.Mapping, version string) error {
	var b strings.Builder
	if err := Render(&b, instruments, budgetsKB, mappings, version); err != nil {
		return err
	}
	if err := atomicfile.WriteMkdir(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing mapfile: %w", err)
	}
	return nil
}
