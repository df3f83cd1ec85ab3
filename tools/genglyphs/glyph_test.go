// glyph_test.go tests [RenderGlyph] cell geometry and ink placement and
// [RenderProof] layout, rendering the embedded Go regular font.

package main

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

func testFace(t *testing.T, size float64) (*opentype.Font, font.Face) {
	t.Helper()
	otFont, err := opentype.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("parse gofont: %v", err)
	}
	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		t.Fatalf("create face: %v", err)
	}
	t.Cleanup(func() { face.Close() })
	return otFont, face
}

// hasInk reports whether any pixel of img is not fully transparent.
func hasInk(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y).A != 0 {
				return true
			}
		}
	}
	return false
}

func TestRenderGlyphCellGeometry(t *testing.T) {
	_, face := testFace(t, 16)

	img := RenderGlyph(face, 'A', white, color.NRGBA{})
	if img == nil {
		t.Fatal("RenderGlyph returned nil for 'A'")
	}

	adv, _ := face.GlyphAdvance('A')
	m := face.Metrics()
	if got, want := img.Bounds().Dx(), adv.Ceil(); got != want {
		t.Errorf("cell width = %d, want advance %d", got, want)
	}
	if got, want := img.Bounds().Dy(), (m.Ascent+m.Descent).Ceil(); got != want {
		t.Errorf("cell height = %d, want ascent+descent %d", got, want)
	}
}

func TestRenderGlyphDrawsInk(t *testing.T) {
	_, face := testFace(t, 16)

	img := RenderGlyph(face, 'A', white, color.NRGBA{})
	if img == nil {
		t.Fatal("RenderGlyph returned nil for 'A'")
	}
	if !hasInk(img) {
		t.Error("glyph cell for 'A' is fully transparent")
	}
}

func TestRenderGlyphSpaceIsBlank(t *testing.T) {
	// The space advances but has no ink; its cell must still exist so the
	// compositor can measure it.
	_, face := testFace(t, 16)

	img := RenderGlyph(face, ' ', white, color.NRGBA{})
	if img == nil {
		t.Fatal("RenderGlyph returned nil for space")
	}
	if img.Bounds().Dx() <= 0 {
		t.Error("space cell has no width")
	}
	if hasInk(img) {
		t.Error("space cell has ink")
	}
}

func TestRenderGlyphBackgroundFill(t *testing.T) {
	_, face := testFace(t, 16)

	img := RenderGlyph(face, 'A', white, black)
	if img == nil {
		t.Fatal("RenderGlyph returned nil for 'A'")
	}
	if got := img.NRGBAAt(0, 0); got.A != 255 {
		t.Errorf("corner pixel = %v, want opaque background", got)
	}
}

func TestHasGlyph(t *testing.T) {
	otFont, _ := testFace(t, 16)
	var buf sfnt.Buffer

	if !hasGlyph(otFont, &buf, 'A') {
		t.Error("hasGlyph('A') = false")
	}
	// Private use area, unmapped in the Go fonts.
	if hasGlyph(otFont, &buf, '\uE000') {
		t.Error("hasGlyph(U+E000) = true")
	}
}

func TestRenderProofLayout(t *testing.T) {
	cells := []*image.NRGBA{
		image.NewNRGBA(image.Rect(0, 0, 5, 8)),
		image.NewNRGBA(image.Rect(0, 0, 3, 8)),
	}

	sheet := RenderProof(cells, color.NRGBA{})
	if got, want := sheet.Bounds().Dx(), 5+1+3; got != want {
		t.Errorf("sheet width = %d, want %d", got, want)
	}
	if got, want := sheet.Bounds().Dy(), 8; got != want {
		t.Errorf("sheet height = %d, want %d", got, want)
	}
	// Transparent glyph background gets the dark backdrop.
	if got := sheet.NRGBAAt(0, 0); got.A != 255 {
		t.Errorf("backdrop pixel = %v, want opaque", got)
	}
}
