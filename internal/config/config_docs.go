package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated respack.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "bankmap.budgets_kb")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated respack.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version — do not edit.",
	},

	// ── Bankmap ──────────────────────────────────────────────────
	"bankmap.bank": {
		Comment: "Bank file describing instruments, similarity groups, and usage counts.\nTOML, JSON, and YAML are accepted (by extension).\nEmpty selects the built-in reference bank.",
		Alternatives: []string{
			`bank = "bank.toml"`,
		},
	},
	"bankmap.out": {
		Comment: "Where to write the generated substitution map.",
	},
	"bankmap.budgets_kb": {
		Comment: "Memory budgets to compute, in KB, strictly increasing.\nEach budget becomes one column in the output file.",
	},
	"bankmap.reserve_bytes": {
		Comment: "Bytes subtracted from every budget before selection, reserving room\nfor playback engine state. 32776 = 32 KB + 8.",
	},
	"bankmap.melodic_count": {
		Comment: "Number of leading melodic instrument slots. Slots at and above this\nindex are percussion.",
	},
	"bankmap.reserved_percussion": {
		Comment: "Percussion slots that never sound in the source material. Excluded\nfrom the percussion usage mean so real drums are not diluted.",
	},

	// ── Stats ─────────────────────────────────────────────────────
	"stats.source": {
		Comment: "Where to get usage counts. Options: \"bank\", \"file\", \"url\"\n  bank: inline counts from the bank file's [usage] section\n  file: a local JSON array, one count per instrument index\n  url:  fetch the JSON array remotely (cached for offline rebuilds)\nEmpty follows whatever the bank file declares.",
		Alternatives: []string{
			`source = "file"`,
			`source = "url"`,
		},
	},
	"stats.file": {
		Comment: "Local file path (for source = \"file\").",
		Alternatives: []string{
			`file = "stats/usage.json"`,
		},
	},
	"stats.url": {
		Comment: "Endpoint (for source = \"url\").",
		Alternatives: []string{
			`url = "https://build.example.com/usage-stats.json"`,
		},
	},

	// ── Textimg ──────────────────────────────────────────────────
	"textimg.tool": {
		Comment: "External compositor binary. ImageMagick v7's \"magick\" is the\nreference; a full path works too.",
		Alternatives: []string{
			`tool = "/usr/local/bin/magick"`,
		},
	},
	"textimg.scripts": {
		Comment: "Script files to build, as project-relative glob patterns\n(forward slashes, ** supported).",
		Alternatives: []string{
			`scripts = ["text/**/*.txt", "menus/*.txt"]`,
		},
	},
	"textimg.out_dir": {
		Comment: "Prefix for write paths inside scripts. Empty writes relative to\nthe project root.",
		Alternatives: []string{
			`out_dir = "build/img"`,
		},
	},
	"textimg.timeout_seconds": {
		Comment: "Per-invocation time limit for the external tool.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
			`level = "warn"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},
}
