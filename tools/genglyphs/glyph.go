// glyph.go implements the per-rune rasterization. [RenderGlyph] draws one
// rune into a cell whose width is the rune's advance and whose height is
// the face's ascent plus descent, so every glyph in a set shares one
// baseline and row height. [RenderProof] composes the cells into a
// single-row contact sheet.

package main

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// hasGlyph reports whether the font maps r to a real glyph rather than
// .notdef.
func hasGlyph(f *opentype.Font, buf *sfnt.Buffer, r rune) bool {
	idx, err := f.GlyphIndex(buf, r)
	return err == nil && idx != 0
}

// RenderGlyph draws r into its own advance-wide cell. Returns nil when the
// cell would be empty (a zero advance or a degenerate face).
func RenderGlyph(face font.Face, r rune, fg, bg color.NRGBA) *image.NRGBA {
	adv, ok := face.GlyphAdvance(r)
	if !ok {
		return nil
	}
	m := face.Metrics()
	w := adv.Ceil()
	h := (m.Ascent + m.Descent).Ceil()
	if w <= 0 || h <= 0 {
		return nil
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(0, m.Ascent.Ceil()),
	}
	d.DrawString(string(r))
	return img
}

// RenderProof lays the glyph cells on one row in order with a one-pixel
// gutter. Transparent glyph backgrounds get a dark backdrop so light
// glyphs stay visible.
func RenderProof(cells []*image.NRGBA, bg color.NRGBA) *image.NRGBA {
	const gutter = 1

	w, h := 0, 0
	for _, c := range cells {
		w += c.Bounds().Dx() + gutter
		if c.Bounds().Dy() > h {
			h = c.Bounds().Dy()
		}
	}
	if w > 0 {
		w -= gutter
	}

	backdrop := bg
	if backdrop.A == 0 {
		backdrop = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF}
	}

	sheet := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(backdrop), image.Point{}, draw.Src)

	x := 0
	for _, c := range cells {
		b := c.Bounds()
		draw.Draw(sheet, image.Rect(x, 0, x+b.Dx(), b.Dy()), c, b.Min, draw.Over)
		x += b.Dx() + gutter
	}
	return sheet
}
