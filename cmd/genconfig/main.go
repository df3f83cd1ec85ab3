// Package main implements the genconfig tool that writes respack.default.toml
// from config.ExampleConfig().
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"respack/internal/config"
)

func main() {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(config.ExampleConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	out := annotate(strings.Split(raw.String(), "\n"))
	result := strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"

	// go generate runs from the package directory (internal/config/).
	// With go.mod at root, ../../ reaches the repo root where embed.go
	// embeds respack.default.toml — single source of truth.
	outPath := "../../respack.default.toml"
	if err := os.WriteFile(outPath, []byte(result), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote respack.default.toml\n")
}

// annotate turns the encoder's bare key = value lines into the documented
// example config: a file header, a banner per table, the [config.ConfigDocs]
// comment above each key, commented-out alternatives below it, and
// commented-out entries for keys the encoder omitted entirely. Indentation
// is stripped; blank lines are re-inserted around banners rather than
// carried over from the encoder.
func annotate(lines []string) []string {
	out := []string{
		"# ///////////////////////////////////////////////",
		"# Respack Configuration",
		"# ///////////////////////////////////////////////",
		"",
	}

	// The config schema is a flat set of tables, so a single section name is
	// all the state the annotator carries between lines.
	section := ""
	emitted := map[string]bool{}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[["):
			// A new table starts; the previous one gets its omitted keys
			// appended first.
			injectOmitted(&out, section, emitted)
			section = strings.Trim(trimmed, "[] ")

			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "")
			if doc, ok := config.ConfigDocs[section]; ok && doc.Comment != "" {
				out = appendComment(out, doc.Comment)
			}
			out = append(out, trimmed)

		case !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#"):
			out = append(out, trimmed)

		default:
			key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
			fullPath := key
			if section != "" {
				fullPath = section + "." + key
			}
			emitted[fullPath] = true

			doc, ok := config.ConfigDocs[fullPath]
			if !ok {
				// No doc entry — just emit the line
				out = append(out, trimmed)
				continue
			}
			out = appendComment(out, doc.Comment)
			out = append(out, trimmed)
			for _, alt := range doc.Alternatives {
				out = append(out, "# "+alt)
			}
		}
	}

	injectOmitted(&out, section, emitted)
	return out
}

// appendComment appends a possibly multi-line doc comment, one "# " line
// per input line. Empty comments append nothing.
func appendComment(out []string, comment string) []string {
	if comment == "" {
		return out
	}
	for _, cl := range strings.Split(comment, "\n") {
		out = append(out, "# "+cl)
	}
	return out
}

// injectOmitted appends commented-out entries for [config.ConfigDocs] keys
// that belong to section but were not emitted by the TOML encoder, which
// happens when a field has an omitempty tag and holds its zero value. Every
// documented option thus appears in the generated file even when its value
// is absent from the encoded output. Keys are sorted for deterministic
// ordering.
func injectOmitted(out *[]string, section string, emitted map[string]bool) {
	if section == "" {
		return
	}
	prefix := section + "."

	var omitted []string
	for path := range config.ConfigDocs {
		if strings.HasPrefix(path, prefix) && !emitted[path] {
			omitted = append(omitted, path)
		}
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := config.ConfigDocs[path]
		*out = append(*out, "")
		*out = appendComment(*out, doc.Comment)
		for _, alt := range doc.Alternatives {
			*out = append(*out, "# "+alt)
		}
		emitted[path] = true
	}
}

// sectionName returns the display name for a section banner: the section
// with its first letter capitalized.
func sectionName(section string) string {
	if section == "" {
		return ""
	}
	return strings.ToUpper(section[:1]) + section[1:]
}
