// Package textimg turns line-oriented draw scripts into invocations of an
// external image-manipulation tool (ImageMagick by default).
//
// A script is a sequence of directives, one per line. Blank lines and lines
// starting with # are ignored. A font directive selects the glyph set used
// by subsequent text and glyph draws; canvas opens an image block and write
// closes it:
//
//	font glyphs/small 1
//	canvas 64 16 #000000
//	text 2 4 HELLO
//	glyph 40 4 heart
//	image 50 0 logo.bmp
//	write title.png
//
// Glyph files live in the font directory as three-digit decimal codepoint
// PNGs (065.png for 'A'). The package never decodes pixels; it only probes
// image headers for widths and hands composition to the external tool.
package textimg

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// Script Model
// ///////////////////////////////////////////////

// DrawKind identifies what a [Draw] places on the canvas.
type DrawKind int

const (
	// DrawText renders a string glyph by glyph from the active font.
	DrawText DrawKind = iota
	// DrawGlyph places a single named glyph image from the active font.
	DrawGlyph
	// DrawImage overlays an arbitrary image file.
	DrawImage
)

// Draw is one positioned overlay operation inside a canvas block.
type Draw struct {
	// Line is the 1-based script line the directive appeared on.
	Line int
	// Kind selects how Arg is interpreted.
	Kind DrawKind
	// X, Y position the overlay's top-left corner on the canvas.
	X, Y int
	// Arg is the string to render, the glyph name, or the image path,
	// depending on Kind.
	Arg string
	// Font is the glyph directory active when the directive was parsed.
	// Empty for DrawImage.
	Font string
	// Spacing is the extra pen advance between characters, from the
	// font directive in effect.
	Spacing int
}

// Block is one canvas..write unit: a fresh canvas, its draws, and the
// output path.
type Block struct {
	// Line is the script line of the canvas directive.
	Line int
	// Width and Height are the canvas dimensions in pixels.
	Width, Height int
	// Color is the canvas background: "none" or #RRGGBB / #RRGGBBAA.
	Color string
	// Draws are the overlay operations in script order.
	Draws []Draw
	// Out is the output path from the write directive.
	Out string
}

// Script is a parsed draw script.
type Script struct {
	// Path identifies the script in error messages.
	Path string
	// Blocks are the canvas blocks in script order.
	Blocks []Block
}

// ///////////////////////////////////////////////
// Parser
// ///////////////////////////////////////////////

// DefaultSpacing is the pen advance added after each character when the
// font directive does not specify one.
const DefaultSpacing = 1

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}([0-9a-fA-F]{2})?$`)

// ParseFile reads and parses the script at path.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(path, data)
}

// Parse parses script data. The name is used to prefix error messages in
// the usual file:line form. Directive arguments are whitespace-separated;
// the final string/path argument of text, image, and write may contain
// spaces.
func Parse(name string, data []byte) (*Script, error) {
	s := &Script{Path: name}

	var (
		cur     *Block
		fontDir string
		spacing = DefaultSpacing
	)

	lines := strings.Split(string(data), "\n")
	for i, raw := range lines {
		n := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch verb := fields[0]; verb {
		case "font":
			if len(fields) < 2 || len(fields) > 3 {
				return nil, fmt.Errorf("%s:%d: font wants <dir> [spacing]", name, n)
			}
			fontDir = fields[1]
			spacing = DefaultSpacing
			if len(fields) == 3 {
				sp, err := strconv.Atoi(fields[2])
				if err != nil || sp < 0 {
					return nil, fmt.Errorf("%s:%d: invalid font spacing %q", name, n, fields[2])
				}
				spacing = sp
			}

		case "canvas":
			if cur != nil {
				return nil, fmt.Errorf("%s:%d: canvas before previous block was written", name, n)
			}
			if len(fields) < 3 || len(fields) > 4 {
				return nil, fmt.Errorf("%s:%d: canvas wants <width> <height> [color]", name, n)
			}
			w, errW := strconv.Atoi(fields[1])
			h, errH := strconv.Atoi(fields[2])
			if errW != nil || errH != nil || w <= 0 || h <= 0 {
				return nil, fmt.Errorf("%s:%d: invalid canvas size %q x %q", name, n, fields[1], fields[2])
			}
			color := "none"
			if len(fields) == 4 {
				color = fields[3]
				if color != "none" && !colorRe.MatchString(color) {
					return nil, fmt.Errorf("%s:%d: invalid canvas color %q", name, n, color)
				}
			}
			cur = &Block{Line: n, Width: w, Height: h, Color: color}

		case "text", "image":
			if cur == nil {
				return nil, fmt.Errorf("%s:%d: %s outside a canvas block", name, n, verb)
			}
			if verb == "text" && fontDir == "" {
				return nil, fmt.Errorf("%s:%d: text before any font directive", name, n)
			}
			if len(fields) < 4 {
				return nil, fmt.Errorf("%s:%d: %s wants <x> <y> <arg>", name, n, verb)
			}
			x, errX := strconv.Atoi(fields[1])
			y, errY := strconv.Atoi(fields[2])
			if errX != nil || errY != nil {
				return nil, fmt.Errorf("%s:%d: invalid %s position %q %q", name, n, verb, fields[1], fields[2])
			}
			d := Draw{Line: n, X: x, Y: y, Arg: fieldRest(line, 3)}
			if verb == "text" {
				d.Kind = DrawText
				d.Font = fontDir
				d.Spacing = spacing
			} else {
				d.Kind = DrawImage
			}
			cur.Draws = append(cur.Draws, d)

		case "glyph":
			if cur == nil {
				return nil, fmt.Errorf("%s:%d: glyph outside a canvas block", name, n)
			}
			if fontDir == "" {
				return nil, fmt.Errorf("%s:%d: glyph before any font directive", name, n)
			}
			if len(fields) != 4 {
				return nil, fmt.Errorf("%s:%d: glyph wants <x> <y> <name>", name, n)
			}
			x, errX := strconv.Atoi(fields[1])
			y, errY := strconv.Atoi(fields[2])
			if errX != nil || errY != nil {
				return nil, fmt.Errorf("%s:%d: invalid glyph position %q %q", name, n, fields[1], fields[2])
			}
			cur.Draws = append(cur.Draws, Draw{
				Line: n, Kind: DrawGlyph, X: x, Y: y,
				Arg: fields[3], Font: fontDir, Spacing: spacing,
			})

		case "write":
			if cur == nil {
				return nil, fmt.Errorf("%s:%d: write outside a canvas block", name, n)
			}
			out := fieldRest(line, 1)
			if out == "" {
				return nil, fmt.Errorf("%s:%d: write wants <path>", name, n)
			}
			cur.Out = out
			s.Blocks = append(s.Blocks, *cur)
			cur = nil

		default:
			return nil, fmt.Errorf("%s:%d: unknown directive %q", name, n, verb)
		}
	}

	if cur != nil {
		return nil, fmt.Errorf("%s:%d: canvas block never written", name, cur.Line)
	}
	return s, nil
}

// fieldRest returns the text remaining after the first n whitespace-separated
// fields of s, with surrounding whitespace trimmed. Used for the final
// argument of directives whose string may contain spaces.
func fieldRest(s string, n int) string {
	for i := 0; i < n; i++ {
		s = strings.TrimLeft(s, " \t")
		j := strings.IndexAny(s, " \t")
		if j < 0 {
			return ""
		}
		s = s[j:]
	}
	return strings.TrimSpace(s)
}
