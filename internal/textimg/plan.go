package textimg

import (
	"fmt"
	"path/filepath"

	"respack/internal/paths"
)

// ///////////////////////////////////////////////
// Plan Compilation
// ///////////////////////////////////////////////

// Overlay is one composite step: place the image file Src with its top-left
// corner at (X, Y) on the canvas.
type Overlay struct {
	Src  string
	X, Y int
}

// Plan is one fully resolved external-tool invocation: a canvas, the
// overlays in draw order, and the output file.
type Plan struct {
	// Width and Height are the canvas dimensions in pixels.
	Width, Height int
	// Color is the canvas background ("none" for transparent).
	Color string
	// Overlays are the composite steps in script order.
	Overlays []Overlay
	// Out is the resolved output path.
	Out string
}

// Compile translates a parsed script into one plan per canvas block.
// Script paths resolve against the project root; write paths are first
// prefixed with outDir when it is non-empty. Glyph and overlay widths are
// probed up front so a missing or unreadable image fails here, with the
// script line, rather than inside the external tool.
func Compile(s *Script, proj paths.Project, outDir string, prober *Prober) ([]Plan, error) {
	plans := make([]Plan, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		p := Plan{Width: b.Width, Height: b.Height, Color: b.Color}

		for _, d := range b.Draws {
			switch d.Kind {
			case DrawText:
				pen := d.X
				fontDir := proj.Resolve(d.Font)
				for _, r := range d.Arg {
					gp := GlyphPath(fontDir, r)
					w, err := prober.Width(gp)
					if err != nil {
						return nil, fmt.Errorf("%s:%d: glyph %q (%03d): %w", s.Path, d.Line, string(r), r, err)
					}
					p.Overlays = append(p.Overlays, Overlay{Src: gp, X: pen, Y: d.Y})
					pen += w + d.Spacing
				}

			case DrawGlyph:
				gp := filepath.Join(proj.Resolve(d.Font), d.Arg+".png")
				if _, err := prober.Width(gp); err != nil {
					return nil, fmt.Errorf("%s:%d: glyph %q: %w", s.Path, d.Line, d.Arg, err)
				}
				p.Overlays = append(p.Overlays, Overlay{Src: gp, X: d.X, Y: d.Y})

			case DrawImage:
				src := proj.Resolve(d.Arg)
				if _, err := prober.Width(src); err != nil {
					return nil, fmt.Errorf("%s:%d: image %q: %w", s.Path, d.Line, d.Arg, err)
				}
				p.Overlays = append(p.Overlays, Overlay{Src: src, X: d.X, Y: d.Y})
			}
		}

		out := b.Out
		if outDir != "" && !filepath.IsAbs(out) {
			out = filepath.Join(outDir, out)
		}
		p.Out = proj.Resolve(out)

		plans = append(plans, p)
	}
	return plans, nil
}
