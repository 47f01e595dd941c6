// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The zoetrope command converts animated raster images into videos by
// reconstructing the full-canvas frame sequence and handing it to an
// external encoder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/zoetrope-dev/zoetrope/config"
	"github.com/zoetrope-dev/zoetrope/internal/convert"
	"github.com/zoetrope-dev/zoetrope/internal/ffmpeg"
	"github.com/zoetrope-dev/zoetrope/internal/journal"
	"github.com/zoetrope-dev/zoetrope/internal/slogext"
	"github.com/zoetrope-dev/zoetrope/internal/version"
	"github.com/zoetrope-dev/zoetrope/internal/watch"
	"github.com/zoetrope-dev/zoetrope/internal/xdg"
)

func main() {
	os.Exit(Main())
}

// Main is the zoetrope entry point, returning the process exit code.
func Main() int {
	cfgPath := flag.String("config", "", "TOML configuration file")
	out := flag.String("o", "", "output video file (default beside the input with an .mp4 extension)")
	framesDir := flag.String("frames", "", "directory for the still sequence (default a temporary directory)")
	keep := flag.Bool("keep-frames", false, "keep the still sequence after encoding")
	dryRun := flag.Bool("dry-run", false, "write the still sequence but do not invoke the encoder")
	watchDir := flag.String("watch", "", "watch a directory and convert inputs as they arrive")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "number of still-image writers")
	ffmpegPath := flag.String("ffmpeg", "", "ffmpeg executable (default from PATH)")
	journalPath := flag.String("journal", "", "sqlite conversion journal (default no journal)")
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		s, err := version.String()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(s)
		return 0
	}

	var sys config.System
	if *cfgPath == "" {
		// Fall back to the standard configuration directories.
		path, err := xdg.Config(filepath.Join("zoetrope", "config.toml"))
		if err == nil {
			*cfgPath = path
		}
	}
	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		sys = *cfg
	}
	// Flags given on the command line win over the configuration file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["ffmpeg"] && sys.FFmpeg != "" {
		*ffmpegPath = sys.FFmpeg
	}
	if !set["workers"] && sys.Workers > 0 {
		*workers = sys.Workers
	}
	if !set["journal"] && sys.Journal != "" {
		*journalPath = sys.Journal
	}
	if !set["keep-frames"] {
		*keep = sys.KeepFrames
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return 2
	}
	if !set["log"] && sys.LogLevel != nil {
		level.Set(*sys.LogLevel)
	}
	addSource := slogext.NewAtomicBool(*lines)
	if !set["lines"] && sys.AddSource != nil {
		addSource.Store(*sys.AddSource)
	}

	// log is the root logger.
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})
	// mlog is the logger for main.
	mlog := log.With(slog.String("component", "zoetrope.main"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		mlog.LogAttrs(ctx, slog.LevelInfo, "terminating")
		cancel()
	}()

	var db *journal.DB
	if *journalPath != "" {
		db, err = journal.Open(*journalPath, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
			return 1
		}
		defer db.Close()
	}

	opts := convert.Options{
		FramesDir:  *framesDir,
		KeepFrames: *keep,
		DryRun:     *dryRun,
		Workers:    *workers,
		Encoder:    &ffmpeg.Encoder{Path: *ffmpegPath, Log: log},
		Journal:    db,
		Log:        log,
	}

	if *watchDir != "" {
		if flag.NArg() != 0 {
			flag.Usage()
			return 2
		}
		return watchLoop(ctx, *watchDir, sys.OutputDir, opts, mlog)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	opts.Input = flag.Arg(0)
	opts.Output = *out
	if opts.Output == "" {
		opts.Output = outputName(opts.Input, sys.OutputDir)
	}
	err = convert.Run(ctx, opts)
	if err != nil {
		mlog.LogAttrs(ctx, slog.LevelError, "conversion failed", slog.Any("error", err))
		return 1
	}
	return 0
}

// watchLoop converts inputs arriving in dir until the context is
// cancelled. Individual conversion failures are logged and do not
// stop the loop.
func watchLoop(ctx context.Context, dir, outDir string, opts convert.Options, log *slog.Logger) int {
	events := make(chan watch.Event)
	done := make(chan error, 1)
	go func() {
		done <- watch.Watch(ctx, dir, events, -1, log)
	}()
	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return 0
			}
			log.LogAttrs(ctx, slog.LevelError, "watcher failed", slog.Any("error", err))
			return 1
		case ev := <-events:
			if ev.Err != nil {
				log.LogAttrs(ctx, slog.LevelWarn, "watch error", slog.Any("error", ev.Err))
				continue
			}
			o := opts
			o.Input = ev.Path
			o.Output = outputName(ev.Path, outDir)
			err := convert.Run(ctx, o)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "conversion failed", slog.Any("error", err))
			}
		}
	}
}

// outputName maps an input image path to its video destination.
func outputName(input, dir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".mp4"
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base)
}
