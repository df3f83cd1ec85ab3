// Package bankmap computes priority-ranked instrument substitution maps for
// fixed memory budgets.
//
// The input is an instrument bank: every instrument has a patch name, a
// resident file size, and a raw usage count, and belongs to exactly one
// similarity group with a designated leader. [NewTable] rescales the usage
// counts onto a single comparable scale, ranks every instrument by value
// density (adjusted usage per byte of resident size), and seeds a complete
// fallback mapping in which every group member substitutes its leader.
// [Table.Mapping] then runs one greedy admission pass per budget: walking the
// density ranking, an instrument is admitted (mapped to itself, made
// resident) only while the resident total stays strictly under the budget
// minus the driver reserve.
//
// The result is total and flat: every index maps either to itself or to a
// resident substitute, so resolution always terminates in one hop. The
// computation is deterministic (density ties break on patch name, never on
// map iteration order) and pure, so a single [Table] serves any number of
// budgets, all sharing one ranking.
package bankmap

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ///////////////////////////////////////////////
// Options and Errors
// ///////////////////////////////////////////////

// Deployment constants for the reference sound driver. The reserve is the
// driver's fixed onboard overhead; the reserved percussion count is the
// number of percussion slots the driver defines but no known song triggers.
// Both are tied to the driver's memory layout, not derived from a formula.
const (
	DefaultReserveBytes       = 32*1024 + 8
	DefaultMelodicCount       = 128
	DefaultReservedPercussion = 35
)

var (
	// ErrInfeasible reports that the group-leader fallback set alone does
	// not fit the adjusted budget. The bank or the budget is misconfigured;
	// rerunning cannot help.
	ErrInfeasible = errors.New("leader fallback set exceeds adjusted budget")

	// ErrUnknownPatch reports that a similarity group names a patch with no
	// entry in the instrument table.
	ErrUnknownPatch = errors.New("unknown patch name")
)

// Instrument is one entry of the bank table.
type Instrument struct {
	// Index is the instrument's position in the bank. Indices below the
	// configured melodic count are melodic, the rest are percussion.
	Index int
	// Patch is the unique sample file name the index refers to.
	Patch string
	// Size is the resident size of the patch in bytes.
	Size int64
}

// Options carries the deployment constants for one table.
type Options struct {
	// ReserveBytes is subtracted from every nominal budget before any
	// capacity check.
	ReserveBytes int64
	// MelodicCount is the number of leading indices treated as melodic.
	MelodicCount int
	// ReservedPercussion is the count of known-unused percussion slots
	// excluded from the percussion mean's denominator.
	ReservedPercussion int
}

// DefaultOptions returns the reference deployment constants.
func DefaultOptions() Options {
	return Options{
		ReserveBytes:       DefaultReserveBytes,
		MelodicCount:       DefaultMelodicCount,
		ReservedPercussion: DefaultReservedPercussion,
	}
}

// ///////////////////////////////////////////////
// Table Construction
// ///////////////////////////////////////////////

// Table holds the resolved bank: leader fallbacks, adjusted usage, and the
// density ranking shared by every budget.
type Table struct {
	ins      []Instrument
	adjusted []float64
	priority []float64
	leader   []int
	ranking  []int
	opts     Options
}

// NewTable validates the bank, resolves group patch names to indices, seeds
// the leader fallback map, rescales usage counts, and computes the density
// ranking.
//
// Instrument indices must be contiguous from zero and patch names unique.
// Groups list member patch names with the leader first; instruments absent
// from every group form singleton groups. usage holds one nonnegative count
// per instrument, ordered by index. A group member with no table entry fails
// with [ErrUnknownPatch].
func NewTable(instruments []Instrument, groups [][]string, usage []int64, opts Options) (*Table, error) {
	if len(instruments) == 0 {
		return nil, errors.New("bankmap: empty instrument table")
	}
	if opts.MelodicCount <= 0 {
		return nil, fmt.Errorf("bankmap: melodic count %d, want positive", opts.MelodicCount)
	}
	if opts.ReservedPercussion < 0 {
		return nil, fmt.Errorf("bankmap: reserved percussion count %d, want nonnegative", opts.ReservedPercussion)
	}
	if opts.ReserveBytes < 0 {
		return nil, fmt.Errorf("bankmap: reserve %d bytes, want nonnegative", opts.ReserveBytes)
	}

	ins := slices.Clone(instruments)
	slices.SortFunc(ins, func(a, b Instrument) int { return cmp.Compare(a.Index, b.Index) })

	byPatch := make(map[string]int, len(ins))
	for i, in := range ins {
		if in.Index != i {
			return nil, fmt.Errorf("bankmap: instrument indices must be contiguous from 0, got %d at position %d", in.Index, i)
		}
		if in.Patch == "" {
			return nil, fmt.Errorf("bankmap: instrument %d has no patch name", i)
		}
		if in.Size <= 0 {
			return nil, fmt.Errorf("bankmap: patch %q: size %d bytes, want positive", in.Patch, in.Size)
		}
		if _, dup := byPatch[in.Patch]; dup {
			return nil, fmt.Errorf("bankmap: duplicate patch name %q", in.Patch)
		}
		byPatch[in.Patch] = i
	}

	if len(usage) != len(ins) {
		return nil, fmt.Errorf("bankmap: %d usage counts for %d instruments", len(usage), len(ins))
	}
	for i, u := range usage {
		if u < 0 {
			return nil, fmt.Errorf("bankmap: patch %q: usage count %d, want nonnegative", ins[i].Patch, u)
		}
	}

	// Seed: every instrument falls back to its group leader, singletons to
	// themselves. Flat on purpose, substitution never chains.
	leader := make([]int, len(ins))
	for i := range leader {
		leader[i] = i
	}
	grouped := make([]bool, len(ins))
	for gi, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("bankmap: group %d is empty", gi)
		}
		lead, ok := byPatch[g[0]]
		if !ok {
			return nil, fmt.Errorf("bankmap: group %d: leader %q: %w", gi, g[0], ErrUnknownPatch)
		}
		for _, patch := range g {
			idx, ok := byPatch[patch]
			if !ok {
				return nil, fmt.Errorf("bankmap: group %d: member %q: %w", gi, patch, ErrUnknownPatch)
			}
			if grouped[idx] {
				return nil, fmt.Errorf("bankmap: patch %q belongs to more than one group", patch)
			}
			grouped[idx] = true
			leader[idx] = lead
		}
	}

	adjusted, err := normalize(usage, opts)
	if err != nil {
		return nil, err
	}

	priority := make([]float64, len(ins))
	for i := range ins {
		priority[i] = adjusted[i] / float64(ins[i].Size)
	}

	ranking := make([]int, len(ins))
	for i := range ranking {
		ranking[i] = i
	}
	slices.SortFunc(ranking, func(a, b int) int {
		if priority[a] != priority[b] {
			if priority[a] > priority[b] {
				return -1
			}
			return 1
		}
		return strings.Compare(ins[a].Patch, ins[b].Patch)
	})

	return &Table{
		ins:      ins,
		adjusted: adjusted,
		priority: priority,
		leader:   leader,
		ranking:  ranking,
		opts:     opts,
	}, nil
}

// normalize rescales percussion usage counts onto the melodic scale.
//
// Melodic counts pass through unchanged. Each percussion count is multiplied
// by melodicMean / correctedPercussionMean, where the corrected mean divides
// the percussion total by the slot count minus the reserved known-unused
// slots. Dividing by the full slot count would let the long tail of
// never-played slots understate real percussion demand.
func normalize(usage []int64, opts Options) ([]float64, error) {
	adjusted := make([]float64, len(usage))
	for i, u := range usage {
		adjusted[i] = float64(u)
	}

	melodic := min(opts.MelodicCount, len(usage))
	if melodic == len(usage) {
		// Melodic-only bank, nothing to rescale.
		return adjusted, nil
	}

	var melodicSum int64
	for _, u := range usage[:melodic] {
		melodicSum += u
	}
	melodicMean := float64(melodicSum) / float64(melodic)

	perc := usage[melodic:]
	var percSum int64
	for _, u := range perc {
		percSum += u
	}
	if percSum == 0 {
		// No percussion demand; any scale factor would map zero to zero.
		return adjusted, nil
	}

	denom := len(perc) - opts.ReservedPercussion
	if denom <= 0 {
		return nil, fmt.Errorf("bankmap: %d reserved slots leave no denominator for %d percussion instruments", opts.ReservedPercussion, len(perc))
	}
	factor := melodicMean / (float64(percSum) / float64(denom))
	for i := melodic; i < len(usage); i++ {
		adjusted[i] = float64(usage[i]) * factor
	}
	return adjusted, nil
}

// ///////////////////////////////////////////////
// Accessors
// ///////////////////////////////////////////////

// Len returns the number of instruments in the table.
func (t *Table) Len() int { return len(t.ins) }

// Instrument returns the table entry at index i.
func (t *Table) Instrument(i int) Instrument { return t.ins[i] }

// AdjustedUsage returns the usage count of index i after normalization.
func (t *Table) AdjustedUsage(i int) float64 { return t.adjusted[i] }

// Priority returns the value density of index i: adjusted usage per byte.
func (t *Table) Priority(i int) float64 { return t.priority[i] }

// Leader returns the group leader index i falls back to.
func (t *Table) Leader(i int) int { return t.leader[i] }

// Ranking returns the instrument indices in admission order: descending
// priority, ties broken by ascending patch name.
func (t *Table) Ranking() []int { return slices.Clone(t.ranking) }

// ///////////////////////////////////////////////
// Mapping
// ///////////////////////////////////////////////

// Mapping assigns every instrument index the index it resolves to: itself
// when the instrument is resident, otherwise its substitute. Substitutes are
// always resident, so resolution terminates in one hop.
type Mapping []int

// Selected returns the resident indices in ascending order.
func (m Mapping) Selected() []int {
	var sel []int
	for i, target := range m {
		if target == i {
			sel = append(sel, i)
		}
	}
	return sel
}

// Mapping computes the substitution map for one nominal budget in bytes.
//
// The configured reserve is subtracted first. The leader fallback seed must
// fit strictly under what remains, otherwise the budget is unusable and the
// call fails with [ErrInfeasible]. Instruments are then admitted in ranking
// order while the resident total stays strictly under the adjusted budget;
// an instrument that does not fit at its turn is skipped for good.
func (t *Table) Mapping(budgetBytes int64) (Mapping, error) {
	adjusted := budgetBytes - t.opts.ReserveBytes

	m := Mapping(slices.Clone(t.leader))
	var total int64
	for i, target := range m {
		if target == i {
			total += t.ins[i].Size
		}
	}
	if total >= adjusted {
		return nil, fmt.Errorf("bankmap: budget %d bytes: fallback set needs %d bytes, %d left after %d byte reserve: %w",
			budgetBytes, total, adjusted, t.opts.ReserveBytes, ErrInfeasible)
	}

	for _, i := range t.ranking {
		if m[i] == i {
			continue
		}
		if total+t.ins[i].Size < adjusted {
			m[i] = i
			total += t.ins[i].Size
		}
	}
	return m, nil
}

// ResidentSize sums the file sizes of the instruments m selects as resident.
func (t *Table) ResidentSize(m Mapping) int64 {
	var total int64
	for i, target := range m {
		if target == i {
			total += t.ins[i].Size
		}
	}
	return total
}
