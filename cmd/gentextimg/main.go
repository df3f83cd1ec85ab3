// Package main implements gentextimg, which composites small raster images
// from bitmap font glyphs and image overlays according to draw scripts,
// delegating pixel work to an external ImageMagick-style tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"respack/internal/config"
	"respack/internal/lockfile"
	"respack/internal/logger"
	"respack/internal/paths"
	"respack/internal/textimg"
	"respack/internal/watcher"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=$(go run ./cmd/buildver)"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Composition Pass
// ///////////////////////////////////////////////

// run executes one full composition pass. An empty scripts slice means
// discover the script files through the configured glob patterns; an
// explicit list (positional arguments) is used as-is. With dryRun set the
// external tool is not invoked and the command line for every image is
// printed instead.
func run(ctx context.Context, cfg *config.Config, proj paths.Project, scripts []string, dryRun bool) error {
	if len(scripts) == 0 {
		var err error
		scripts, err = cfg.ScriptPaths(proj.Root)
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			slog.Warn("no script files match the configured patterns", "patterns", cfg.Textimg.Scripts)
			return nil
		}
	}

	prober := textimg.NewProber()
	runner := textimg.Runner{
		Tool:    cfg.Textimg.Tool,
		Timeout: time.Duration(cfg.Textimg.TimeoutSeconds) * time.Second,
	}

	rendered := 0
	for _, path := range scripts {
		script, err := textimg.ParseFile(path)
		if err != nil {
			return err
		}
		plans, err := textimg.Compile(script, proj, cfg.Textimg.OutDir, prober)
		if err != nil {
			return err
		}
		for i := range plans {
			p := &plans[i]
			if dryRun {
				fmt.Println(p.CommandLine(cfg.Textimg.Tool))
				continue
			}
			if err := runner.Run(ctx, p); err != nil {
				return err
			}
			slog.Info("rendered image", "out", p.Out, "overlays", len(p.Overlays))
			rendered++
		}
	}
	if !dryRun {
		slog.Info("composition pass complete", "scripts", len(scripts), "images", rendered)
	}
	return nil
}

// ///////////////////////////////////////////////
// Watch Mode
// ///////////////////////////////////////////////

// settleDelay is how long the inputs must stay quiet after a change before
// a re-render starts, so editor write bursts coalesce into one pass.
const settleDelay = 300 * time.Millisecond

// watchInputs lists the files whose changes trigger a re-render: the config
// file plus the script files known at startup. Scripts created later that
// match the globs are picked up by the next triggered pass but do not
// themselves trigger one until a restart.
func watchInputs(cfg *config.Config, proj paths.Project, cfgFile string, scripts []string) ([]string, error) {
	if len(scripts) == 0 {
		var err error
		scripts, err = cfg.ScriptPaths(proj.Root)
		if err != nil {
			return nil, err
		}
	}
	return append([]string{cfgFile}, scripts...), nil
}

// runWatch re-renders on every input change until ctx is canceled. The lock
// file limits each project to one watching instance.
func runWatch(ctx context.Context, cfg *config.Config, proj paths.Project, cfgFile string, scripts []string, dryRun bool, reload func() (*config.Config, error)) error {
	if alive, pid := lockfile.Check(proj.Lock()); alive {
		return fmt.Errorf("another instance is already running (pid %d)", pid)
	}
	lock, err := lockfile.Acquire(proj.Lock())
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.Release()

	inputs, err := watchInputs(cfg, proj, cfgFile, scripts)
	if err != nil {
		return err
	}
	w, err := watcher.New(inputs)
	if err != nil {
		return fmt.Errorf("watch inputs: %w", err)
	}
	defer w.Close()
	if w.Polling() {
		slog.Info("using polling mode for file watching")
	}

	if err := run(ctx, cfg, proj, scripts, dryRun); err != nil {
		slog.Error("composition pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("received shutdown signal")
			return nil

		case <-w.Events():
			w.WaitSettle(settleDelay)
			fresh, err := reload()
			if err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			cfg = fresh
			if err := run(ctx, cfg, proj, scripts, dryRun); err != nil {
				slog.Error("composition pass failed", "error", err)
			}
		}
	}
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	configFlag := flag.String("config", "", "Config file path (default <project>/respack.toml)")
	projectFlag := flag.String("project", ".", "Project root directory")
	outDirFlag := flag.String("out-dir", "", "Directory prefix for script output paths (overrides config)")
	toolFlag := flag.String("tool", "", "External compositor binary (overrides config)")
	dryRunFlag := flag.Bool("dry-run", false, "Print the tool command lines instead of running them")
	logLevelFlag := flag.String("log-level", "", "Minimum log level: trace, debug, info, warn, error (overrides config)")
	watchFlag := flag.Bool("watch", false, "Stay running and re-render whenever an input file changes")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("gentextimg " + resolveVersion())
		return
	}

	// Positional arguments name script files directly, bypassing the
	// configured glob patterns.
	scripts := flag.Args()

	proj := paths.Project{Root: *projectFlag}

	cfgFile := *configFlag
	if cfgFile == "" {
		cfgFile = proj.Config()
	}

	loadCfg := func() (*config.Config, error) {
		cfg, err := config.LoadFile(cfgFile)
		if err != nil {
			return nil, err
		}
		if *toolFlag != "" {
			cfg.Textimg.Tool = *toolFlag
		}
		if *outDirFlag != "" {
			cfg.Textimg.OutDir = *outDirFlag
		}
		if *logLevelFlag != "" {
			cfg.Log.Level = *logLevelFlag
		}
		return cfg, nil
	}

	cfg, err := loadCfg()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(proj.CacheDir(), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create cache dir: %v\n", err)
		os.Exit(1)
	}

	log, logCloser, err := logger.NewToolLogger(os.Stderr, proj.Log(), logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("gentextimg starting", "version", resolveVersion(), "project", proj.Root, "config", cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watchFlag {
		if err := runWatch(ctx, cfg, proj, cfgFile, scripts, *dryRunFlag, loadCfg); err != nil {
			slog.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, proj, scripts, *dryRunFlag); err != nil {
		slog.Error("composition pass failed", "error", err)
		os.Exit(1)
	}
}
