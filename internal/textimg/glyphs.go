package textimg

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Register the decoders [image.DecodeConfig] can meet in glyph and
	// overlay files.
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// ///////////////////////////////////////////////
// Glyph Files
// ///////////////////////////////////////////////

// GlyphPath returns the file path of the glyph image for codepoint r in a
// font directory: the decimal codepoint zero-padded to three digits, with
// a .png extension (065.png for 'A').
func GlyphPath(dir string, r rune) string {
	return filepath.Join(dir, fmt.Sprintf("%03d.png", r))
}

// ///////////////////////////////////////////////
// Width Probing
// ///////////////////////////////////////////////

// Prober reads pixel widths from image file headers. Composition is the
// external tool's job; the prober only needs enough of each file to learn
// its width, via [image.DecodeConfig], and caches the result per path.
type Prober struct {
	widths map[string]int
}

// NewProber returns an empty Prober.
func NewProber() *Prober {
	return &Prober{widths: make(map[string]int)}
}

// Width returns the pixel width of the image at path. Results are cached,
// so probing the same glyph for every occurrence in a script costs one
// header read.
func (p *Prober) Width(path string) (int, error) {
	if w, ok := p.widths[path]; ok {
		return w, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("probe image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("probe image %s: %w", path, err)
	}

	p.widths[path] = cfg.Width
	return cfg.Width, nil
}
