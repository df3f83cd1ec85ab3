package textimg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ///////////////////////////////////////////////
// External Tool
// ///////////////////////////////////////////////

// Args returns the argument vector that renders the plan with an
// ImageMagick-style tool: a blank canvas, one geometry+composite triple per
// overlay, then the output path.
func (p *Plan) Args() []string {
	args := []string{
		"-size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"xc:" + p.Color,
	}
	for _, ov := range p.Overlays {
		args = append(args,
			ov.Src,
			"-geometry", fmt.Sprintf("%+d%+d", ov.X, ov.Y),
			"-composite",
		)
	}
	return append(args, p.Out)
}

// CommandLine returns the invocation as a single printable line, used by
// dry runs.
func (p *Plan) CommandLine(tool string) string {
	return tool + " " + strings.Join(p.Args(), " ")
}

// Runner executes compiled plans with the configured external image tool.
type Runner struct {
	// Tool is the executable name or path (typically "magick").
	Tool string
	// Timeout bounds a single invocation.
	Timeout time.Duration
}

// Run renders one plan. The output directory is created if needed since
// the external tool will not. The tool's stderr is captured and folded
// into the returned error.
func (r *Runner) Run(ctx context.Context, p *Plan) error {
	if dir := filepath.Dir(p.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Tool, p.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s render %s: %w: %s", r.Tool, p.Out, err, msg)
		}
		return fmt.Errorf("%s render %s: %w", r.Tool, p.Out, err)
	}
	return nil
}
