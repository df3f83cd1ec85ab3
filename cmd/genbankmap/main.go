// Package main implements genbankmap, which computes priority-ranked
// instrument substitution maps for a set of memory budgets and writes them
// as a single map file consumed by the sound driver build.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"slices"
	"syscall"
	"time"

	rootpkg "respack"
	"respack/internal/bank"
	"respack/internal/bankmap"
	"respack/internal/config"
	"respack/internal/lockfile"
	"respack/internal/logger"
	"respack/internal/mapfile"
	"respack/internal/paths"
	"respack/internal/stats"
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
// Project Init
// ///////////////////////////////////////////////

// initProject writes the annotated default config and the reference bank
// into the project directory so a fresh project has editable copies of
// both. Files that already exist are left alone.
func initProject(proj paths.Project) error {
	if err := os.MkdirAll(proj.Root, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	files := []struct {
		path string
		data []byte
	}{
		{proj.Config(), rootpkg.DefaultConfigTOML},
		{proj.Resolve(paths.DefaultBankFile), rootpkg.DefaultBankTOML},
	}
	for _, f := range files {
		name := filepath.Base(f.path)
		if _, err := os.Stat(f.path); err == nil {
			fmt.Printf("%s already exists, skipping\n", name)
			continue
		}
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Printf("wrote %s\n", name)
	}
	return nil
}

// ///////////////////////////////////////////////
// Build
// ///////////////////////////////////////////////

// loadBank loads the configured bank file, or the embedded reference bank
// when the config names none.
func loadBank(cfg *config.Config, proj paths.Project) (*bank.Bank, error) {
	if cfg.Bankmap.Bank == "" {
		return bank.LoadDefault()
	}
	return bank.Load(proj.Resolve(cfg.Bankmap.Bank))
}

// build runs one full generation pass: load the bank, acquire usage counts,
// rank the instruments, compute one mapping per configured budget, and write
// the map file.
func build(ctx context.Context, cfg *config.Config, proj paths.Project) error {
	bk, err := loadBank(cfg, proj)
	if err != nil {
		return fmt.Errorf("load bank: %w", err)
	}
	slog.Info("loaded bank", "instruments", len(bk.Instruments), "groups", len(bk.Groups))

	spec, err := stats.Resolve(stats.Override{
		Source: cfg.Stats.Source,
		File:   cfg.Stats.File,
		URL:    cfg.Stats.URL,
	}, bk)
	if err != nil {
		return fmt.Errorf("resolve usage source: %w", err)
	}
	if spec.File != "" {
		spec.File = proj.Resolve(spec.File)
	}

	counts, err := stats.Load(ctx, spec, len(bk.Instruments), proj.CacheDir())
	if counts == nil {
		return fmt.Errorf("load usage stats: %w", err)
	}
	if err != nil {
		slog.Warn("usage stats served from cache", "error", err)
	}

	table, err := bk.BuildTable(counts, cfg.BankmapOptions())
	if err != nil {
		return fmt.Errorf("build table: %w", err)
	}

	budgets := cfg.BudgetsBytes()
	mappings := make([]bankmap.Mapping, 0, len(budgets))
	for i, budget := range budgets {
		m, err := table.Mapping(budget)
		if err != nil {
			return fmt.Errorf("budget %d KB: %w", cfg.Bankmap.BudgetsKB[i], err)
		}
		slog.Info("computed mapping",
			"budget_kb", cfg.Bankmap.BudgetsKB[i],
			"resident", len(m.Selected()),
			"total", table.Len(),
			"resident_size", config.FormatBytes(table.ResidentSize(m)))
		for j, target := range m {
			if target != j {
				logger.Trace(slog.Default(), "substituted",
					"budget_kb", cfg.Bankmap.BudgetsKB[i],
					"patch", table.Instrument(j).Patch,
					"with", table.Instrument(target).Patch)
			}
		}
		mappings = append(mappings, m)
	}

	// Render expects rows in index order.
	ins := bk.TableInstruments()
	slices.SortFunc(ins, func(a, b bankmap.Instrument) int { return cmp.Compare(a.Index, b.Index) })

	out := proj.Resolve(cfg.Bankmap.Out)
	if err := mapfile.Write(out, ins, cfg.Bankmap.BudgetsKB, mappings, resolveVersion()); err != nil {
		return fmt.Errorf("write substitution map: %w", err)
	}
	slog.Info("wrote substitution map", "path", out)
	return nil
}

// ///////////////////////////////////////////////
// Watch Mode
// ///////////////////////////////////////////////

// settleDelay is how long the inputs must stay quiet after a change before
// a rebuild starts, so editor write bursts coalesce into one pass.
const settleDelay = 300 * time.Millisecond

// watchInputs lists the files whose changes trigger a rebuild: the config
// file, the bank file when one is configured, and the stats file when the
// config names one. A stats file named only by the bank's usage section is
// not watched.
func watchInputs(cfg *config.Config, proj paths.Project, cfgFile string) []string {
	in := []string{cfgFile}
	if cfg.Bankmap.Bank != "" {
		in = append(in, proj.Resolve(cfg.Bankmap.Bank))
	}
	if cfg.Stats.Source == bank.SourceFile && cfg.Stats.File != "" {
		in = append(in, proj.Resolve(cfg.Stats.File))
	}
	return in
}

// runWatch rebuilds on every input change until ctx is canceled. The lock
// file limits each project to one watching instance.
func runWatch(ctx context.Context, cfg *config.Config, proj paths.Project, cfgFile string, reload func() (*config.Config, error)) error {
	if alive, pid := lockfile.Check(proj.Lock()); alive {
		return fmt.Errorf("another instance is already running (pid %d)", pid)
	}
	lock, err := lockfile.Acquire(proj.Lock())
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.Release()

	// The input set is fixed at startup; a config edit that points at
	// different files takes effect on the next start.
	w, err := watcher.New(watchInputs(cfg, proj, cfgFile))
	if err != nil {
		return fmt.Errorf("watch inputs: %w", err)
	}
	defer w.Close()
	if w.Polling() {
		slog.Info("using polling mode for file watching")
	}

	if err := build(ctx, cfg, proj); err != nil {
		slog.Error("substitution map build failed", "error", err)
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
			if err := build(ctx, cfg, proj); err != nil {
				slog.Error("substitution map build failed", "error", err)
			}
		}
	}
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	outFlag := flag.String("out", "", "Output path for the substitution map (overrides config)")
	bankFlag := flag.String("bank", "", "Bank file path (overrides config)")
	configFlag := flag.String("config", "", "Config file path (default <project>/respack.toml)")
	projectFlag := flag.String("project", ".", "Project root directory")
	logLevelFlag := flag.String("log-level", "", "Minimum log level: trace, debug, info, warn, error (overrides config)")
	watchFlag := flag.Bool("watch", false, "Stay running and rebuild whenever an input file changes")
	initFlag := flag.Bool("init", false, "Write the default respack.toml and bank.toml into the project, then exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("genbankmap " + resolveVersion())
		return
	}

	// The output path may also be given as the single positional argument.
	switch {
	case flag.NArg() == 1 && *outFlag == "":
		*outFlag = flag.Arg(0)
	case flag.NArg() > 0:
		fmt.Fprintln(os.Stderr, "genbankmap: at most one output path argument is accepted")
		flag.Usage()
		os.Exit(2)
	}

	proj := paths.Project{Root: *projectFlag}

	if *initFlag {
		if err := initProject(proj); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: init project: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfgFile := *configFlag
	if cfgFile == "" {
		cfgFile = proj.Config()
	}

	loadCfg := func() (*config.Config, error) {
		cfg, err := config.LoadFile(cfgFile)
		if err != nil {
			return nil, err
		}
		if *bankFlag != "" {
			cfg.Bankmap.Bank = *bankFlag
		}
		if *outFlag != "" {
			cfg.Bankmap.Out = *outFlag
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

	slog.Info("genbankmap starting", "version", resolveVersion(), "project", proj.Root, "config", cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watchFlag {
		if err := runWatch(ctx, cfg, proj, cfgFile, loadCfg); err != nil {
			slog.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := build(ctx, cfg, proj); err != nil {
		slog.Error("substitution map build failed", "error", err)
		os.Exit(1)
	}
}
