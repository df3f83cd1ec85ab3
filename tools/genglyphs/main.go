// genglyphs rasterizes a font into the per-rune glyph images the draw-script
// compositor consumes.
//
// Each rune in the range becomes <out>/<NNN>.png, where NNN is the decimal
// codepoint zero-padded to three digits: A -> 065.png. A glyph image is as
// wide as the rune's advance, so downstream text advance equals glyph file
// width plus the script's spacing. A proof sheet with every rendered glyph
// on one row is written alongside for eyeballing.
//
// Font resolution:
//  1. Local file from -font (TTF/OTF; WOFF2 is converted)
//  2. Google Fonts download from -google (e.g. "google:Silkscreen:400"),
//     also used as the fallback when the -font file is missing
//
// Usage:
//
//	cd tools/genglyphs && go run . -font ../../fonts/small.ttf -out ../../glyphs/small
//	cd tools/genglyphs && go run . -google "google:Silkscreen:400" -size 8 -out ../../glyphs/small
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	tdfont "github.com/tdewolff/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

func main() {
	fontPath := flag.String("font", "", "Local font file (ttf, otf, or woff2)")
	googleSpec := flag.String("google", "", `Google Fonts spec "google:FAMILY:WEIGHT", used when -font is absent`)
	outDir := flag.String("out", "glyphs", "Output directory for glyph images")
	size := flag.Float64("size", 8, "Font size in points at 72 DPI")
	first := flag.Int("first", 32, "First codepoint to render")
	last := flag.Int("last", 126, "Last codepoint to render")
	fg := flag.String("fg", "#FFFFFF", "Glyph color")
	bg := flag.String("bg", "none", `Background color, or "none" for transparent`)
	proofPath := flag.String("proof", "", "Proof sheet path (default <out>/proof.png)")
	flag.Parse()

	fgColor, err := ParseHexColor(*fg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: -fg: %v\n", err)
		os.Exit(1)
	}
	bgColor, err := ParseBackground(*bg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: -bg: %v\n", err)
		os.Exit(1)
	}
	if *first > *last {
		fmt.Fprintf(os.Stderr, "error: -first %d is past -last %d\n", *first, *last)
		os.Exit(1)
	}

	cacheDir := filepath.Join(os.TempDir(), "genglyphs-fontcache")
	fontBytes, err := resolveFont(*fontPath, *googleSpec, cacheDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	otFont, err := opentype.Parse(fontBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: parse font: %v\n", err)
		os.Exit(1)
	}
	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    *size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: create font face: %v\n", err)
		os.Exit(1)
	}
	defer face.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: create output dir: %v\n", err)
		os.Exit(1)
	}

	var buf sfnt.Buffer
	var cells []*image.NRGBA
	count := 0
	for r := rune(*first); r <= rune(*last); r++ {
		if !hasGlyph(otFont, &buf, r) {
			fmt.Fprintf(os.Stderr, "warning: no glyph for %q (%03d), skipping\n", r, r)
			continue
		}
		img := RenderGlyph(face, r, fgColor, bgColor)
		if img == nil {
			fmt.Fprintf(os.Stderr, "warning: zero-size glyph for %q (%03d), skipping\n", r, r)
			continue
		}

		name := fmt.Sprintf("%03d.png", r)
		if err := writePNG(filepath.Join(*outDir, name), img); err != nil {
			fmt.Fprintf(os.Stderr, "error: write %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("  %s %q %dx%d\n", name, r, img.Bounds().Dx(), img.Bounds().Dy())
		cells = append(cells, img)
		count++
	}

	if len(cells) > 0 {
		proof := *proofPath
		if proof == "" {
			proof = filepath.Join(*outDir, "proof.png")
		}
		if err := writePNG(proof, RenderProof(cells, bgColor)); err != nil {
			fmt.Fprintf(os.Stderr, "error: write proof sheet: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  proof sheet: %s\n", proof)
	}

	fmt.Printf("Done. Rendered %d glyphs to %s.\n", count, *outDir)
}

// resolveFont loads the font bytes using this fallback chain:
//  1. Local file from fontPath
//  2. Google Fonts download from googleSpec
//
// When both are given and the local file is unreadable, the download is
// tried before giving up.
func resolveFont(fontPath, googleSpec, cacheDir string) ([]byte, error) {
	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err == nil {
			fmt.Printf("font: %s (local)\n", fontPath)
			return maybeConvertWOFF2(fontPath, data)
		}
		if googleSpec == "" {
			return nil, fmt.Errorf("read font: %w", err)
		}
		fmt.Fprintf(os.Stderr, "warning: %v, trying Google Fonts\n", err)
	}

	if googleSpec != "" {
		family, weight, ok := ParseGoogleFontSpec(googleSpec)
		if !ok {
			return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", googleSpec)
		}
		fmt.Printf("font: %s wght@%s (Google Fonts)\n", family, weight)
		return FetchGoogleFont(googleSpec, cacheDir)
	}

	return nil, errors.New("no font given (set -font or -google)")
}

// maybeConvertWOFF2 converts WOFF2 font data to SFNT format if needed.
func maybeConvertWOFF2(path string, data []byte) ([]byte, error) {
	if isWOFF2(path, data) {
		sfntData, err := tdfont.ToSFNT(data)
		if err != nil {
			return nil, fmt.Errorf("convert woff2 to sfnt: %w", err)
		}
		return sfntData, nil
	}
	return data, nil
}

// isWOFF2 checks whether a font file is WOFF2 by name extension or magic
// bytes. WOFF2 magic: 0x774F4632 ("wOF2")
func isWOFF2(name string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(name), ".woff2") {
		return true
	}
	return len(data) >= 4 && data[0] == 'w' && data[1] == 'O' && data[2] == 'F' && data[3] == '2'
}

// writePNG encodes img and writes it to path.
func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
