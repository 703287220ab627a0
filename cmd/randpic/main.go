package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/randpic/pkg/config"
	"github.com/umputun/randpic/pkg/feed"
	"github.com/umputun/randpic/pkg/picker"
	"github.com/umputun/randpic/pkg/scan"
	"github.com/umputun/randpic/pkg/source"
	"github.com/umputun/randpic/pkg/store"
)

// Opts with all CLI options
type Opts struct {
	MinWidth  int    `long:"min-width" env:"MIN_WIDTH" default:"0" description:"minimum image width in pixels"`
	MinHeight int    `long:"min-height" env:"MIN_HEIGHT" default:"0" description:"minimum image height in pixels"`
	NoCache   bool   `long:"no-cache" description:"ignore cached file lists and feed mirrors"`
	NoIndex   bool   `long:"no-index" description:"disable the locate index accelerator"`
	Config    string `short:"c" long:"config" env:"CONFIG" description:"config file (optional)"`
	Verbose   bool   `short:"v" long:"verbose" description:"verbose mode"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`

	Args struct {
		Target string `positional-arg-name:"DIR|URL" description:"directory to pick from, or http(s)/feed URL"`
	} `positional-args:"yes"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug || opts.Verbose, opts.NoColor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[WARN] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run resolves the target into a candidate list and prints one selected
// path on stdout. Everything else goes to stderr via the logger.
func run(ctx context.Context, opts Opts) error {
	if opts.Args.Target == "" {
		return errors.New("no target given, pass a directory or a feed URL")
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.State.Dir, 0o700); err != nil {
		return fmt.Errorf("create state dir %s: %w", cfg.State.Dir, err)
	}

	st, err := store.New(filepath.Join(cfg.State.Dir, "cache.db"), cfg.Cache.DirListTTL)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck // read path, nothing to lose on close

	ua := cfg.HTTP.UserAgent
	if ua == "" {
		ua = "randpic/" + revision
	}

	client := feed.NewClient(cfg.HTTP.Timeout, ua)
	mirror := feed.NewMirror(cfg.State.Dir, cfg.Cache.FeedTTL, client)
	mirror.NoCache = opts.NoCache
	mirror.Verbose = opts.Verbose

	resolver := &source.Resolver{
		Store:    st,
		Mirror:   mirror,
		Walker:   &scan.Walker{Verbose: opts.Verbose},
		StateDir: cfg.State.Dir,
		NoCache:  opts.NoCache,
		Verbose:  opts.Verbose,
	}
	if !opts.NoIndex && !source.IsFeedURL(opts.Args.Target) {
		resolver.Locate = &scan.Locate{Binary: cfg.Locate.Binary}
	}

	res, err := resolver.Resolve(ctx, opts.Args.Target)
	if err != nil {
		return err
	}
	defer res.Close()

	selector := &picker.Selector{
		MinWidth:    opts.MinWidth,
		MinHeight:   opts.MinHeight,
		MaxAttempts: cfg.Select.MaxAttempts,
		Verbose:     opts.Verbose,
	}

	picked, err := selector.Select(ctx, res.Candidates)
	if err != nil {
		if errors.Is(err, picker.ErrExhausted) {
			// stale candidate data, drop it so the next run re-enumerates
			if invErr := res.Invalidate(); invErr != nil {
				log.Printf("[WARN] failed to invalidate stale cache: %v", invErr)
			}
		}
		return err
	}

	fmt.Println(picked)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLog(dbg, noColor bool) {
	logOpts := []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.Msec, lgr.LevelBraces)
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc: func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:  func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:  func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc: func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			TimeFunc:  func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
