// Package main prints the build version string the generators are stamped
// with through -ldflags. The same string ends up in the header of every
// generated substitution map, so a map file can always be traced back to
// the build that wrote it.
//
// The string follows git state, with the base version read from the
// VERSION file when no tag is reachable:
//
//	On tag v0.1.0:      0.1.0
//	Dirty tag:          0.1.0-dirty
//	3 past v0.1.0:      0.1.0-dev.3+g1234567
//	Same but dirty:     0.1.0-dev.3+g1234567.dirty
//	No tags, clean:     0.1.0-dev+05ffee5
//	No tags, dirty:     0.1.0-dev+05ffee5.dirty
package main

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"respack/internal/paths"
)

func main() {
	fmt.Print(buildVersion())
}

// buildVersion queries git for the version string. Tagged history goes
// through git describe; untagged history falls back to <base>-dev+<hash>
// with the base read by [baseVersion].
func buildVersion() string {
	base := baseVersion()

	// Try git describe with version tags
	if out, err := exec.Command("git", "describe", "--tags", "--match", "v*", "--dirty").Output(); err == nil {
		return formatTaggedVersion(strings.TrimSpace(string(out)))
	}

	// No version tags — build from commit hash
	out, err := exec.Command("git", "rev-parse", "--short=7", "HEAD").Output()
	if err != nil {
		return base + "-dev"
	}
	hash := strings.TrimSpace(string(out))

	if isDirty() {
		return fmt.Sprintf("%s-dev+%s.dirty", base, hash)
	}
	return fmt.Sprintf("%s-dev+%s", base, hash)
}

// describeRe matches the "<tag>-<N>-g<hash>" shape git describe emits when
// HEAD is N commits past the nearest tag.
var describeRe = regexp.MustCompile(`^(.+)-(\d+)-g([0-9a-f]+)$`)

// formatTaggedVersion converts git describe output into a SemVer string.
// "v0.1.0" stays "0.1.0"; "v0.1.0-3-g1234567" becomes "0.1.0-dev.3+g1234567".
// A trailing "-dirty" folds into the build metadata, or suffixes an exact tag.
func formatTaggedVersion(desc string) string {
	dirty := strings.HasSuffix(desc, "-dirty")
	clean := strings.TrimPrefix(strings.TrimSuffix(desc, "-dirty"), "v")

	if m := describeRe.FindStringSubmatch(clean); m != nil {
		meta := "g" + m[3]
		if dirty {
			meta += ".dirty"
		}
		return fmt.Sprintf("%s-dev.%s+%s", m[1], m[2], meta)
	}

	if dirty {
		return clean + "-dirty"
	}
	return clean
}

// isDirty reports whether the git working tree has uncommitted changes
// by checking the output of git status --porcelain.
func isDirty() bool {
	out, err := exec.Command("git", "status", "--porcelain").Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(out))) > 0
}

// baseVersion reads the release version from the VERSION file in the
// current directory. It returns "0.0.0" if the file is missing or empty.
// An optional "v" prefix is accepted and stripped.
func baseVersion() string {
	data, err := os.ReadFile(paths.VersionFile)
	if err != nil {
		return "0.0.0"
	}
	v := strings.TrimPrefix(strings.TrimSpace(string(data)), "v")
	if v == "" {
		return "0.0.0"
	}
	return v
}
