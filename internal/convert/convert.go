// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package convert runs one animated-image to video conversion job:
// decode, composite, persist the still sequence and hand it to the
// external encoder.
package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/zoetrope-dev/zoetrope/internal/animation"
	"github.com/zoetrope-dev/zoetrope/internal/journal"
	"github.com/zoetrope-dev/zoetrope/internal/slogext"
	"github.com/zoetrope-dev/zoetrope/internal/source"
	"github.com/zoetrope-dev/zoetrope/internal/stills"
)

// Encoder encodes a directory of numbered stills at a frame rate into
// a video file.
type Encoder interface {
	Encode(ctx context.Context, framesDir string, rate int, dst string) error
}

// Options configure a single conversion job.
type Options struct {
	// Input is the image file to convert.
	Input string

	// Output is the destination video file.
	Output string

	// FramesDir is the destination for the still sequence. If
	// empty, a temporary directory beside Output is used.
	FramesDir string

	// KeepFrames retains the still sequence after a successful
	// encode. Frames are always kept on a dry run.
	KeepFrames bool

	// DryRun stops after the still sequence is written.
	DryRun bool

	// Workers is the number of still writers. Values below one
	// select a single writer.
	Workers int

	// Encoder is the external video encoder. It is required
	// unless DryRun is set.
	Encoder Encoder

	// Journal, if non-nil, records the job. Journal failures are
	// logged, never fatal to the conversion.
	Journal *journal.DB

	Log *slog.Logger
}

// Run executes the conversion job described by opts. The first error
// aborts the job; a partially written sequence is discarded and no
// output video is produced.
func Run(ctx context.Context, opts Options) (err error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slogext.DiscardHandler)
	}
	log = log.With(slog.String("component", "zoetrope.convert"), slog.String("input", opts.Input))
	if opts.Encoder == nil && !opts.DryRun {
		return errors.New("no encoder configured")
	}

	var job int64
	if opts.Journal != nil {
		job, err = opts.Journal.Begin(ctx, opts.Input)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "journal error", slog.Any("error", err))
			opts.Journal = nil
		}
		defer func() {
			if opts.Journal == nil {
				return
			}
			if err != nil {
				jerr := opts.Journal.Fail(context.WithoutCancel(ctx), job, err)
				if jerr != nil {
					log.LogAttrs(ctx, slog.LevelWarn, "journal error", slog.Any("error", jerr))
				}
			}
		}()
	}

	in, err := readInput(opts.Input)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Input, err)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "decoded input",
		slog.Int("width", in.Width), slog.Int("height", in.Height),
		slog.Int("frames", len(in.Frames)), slog.Bool("animated", in.Animated))

	canvas, err := animation.NewCanvas(in.Width, in.Height, in.Background)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Input, err)
	}

	framesDir := opts.FramesDir
	created := framesDir == ""
	if created {
		framesDir, err = os.MkdirTemp(filepath.Dir(opts.Output), ".frames-*")
	} else {
		err = os.MkdirAll(framesDir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Input, err)
	}
	// The sequence directory belongs to exactly one job at a time.
	fl := flock.New(filepath.Join(framesDir, ".lock"))
	ok, err := fl.TryLock()
	if err == nil && !ok {
		err = errors.New("already in use by another conversion")
	}
	if err != nil {
		return fmt.Errorf("%s: frames directory %s: %w", opts.Input, framesDir, err)
	}
	defer func() {
		// A partial sequence is never a valid end state, so the
		// artifacts go whenever the job failed, and after a
		// successful encode unless they were asked for.
		if err != nil || !(opts.KeepFrames || opts.DryRun) {
			clearSequence(framesDir)
		}
		fl.Unlock()
		os.Remove(fl.Path())
		if created {
			os.Remove(framesDir)
		}
	}()

	sink, err := stills.NewSink(framesDir, opts.Workers, log)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Input, err)
	}
	err = canvas.Render(ctx, in.Frames,
		func(frame, total int) {
			log.LogAttrs(ctx, slog.LevelInfo, "progress", slog.Int("frame", frame), slog.Int("total", total))
		},
		func(i int, snap *image.NRGBA) error {
			return sink.Put(ctx, i, snap)
		})
	cerr := sink.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Input, err)
	}

	rate := animation.Rate(in.Frames)
	log.LogAttrs(ctx, slog.LevelInfo, "sequence complete",
		slog.Int("frames", len(in.Frames)), slog.Int("rate", rate), slog.String("dir", framesDir))

	if !opts.DryRun {
		err = opts.Encoder.Encode(ctx, framesDir, rate, opts.Output)
		if err != nil {
			return fmt.Errorf("%s: %w", opts.Input, err)
		}
		log.LogAttrs(ctx, slog.LevelInfo, "encoded video", slog.String("output", opts.Output))
	}

	if opts.Journal != nil {
		jerr := opts.Journal.Complete(ctx, job, opts.Output, len(in.Frames), rate)
		if jerr != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "journal error", slog.Any("error", jerr))
		}
	}
	return nil
}

// clearSequence removes sequence artifacts and stale temporaries
// from dir, leaving unrelated files in place.
func clearSequence(dir string) {
	de, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range de {
		name := e.Name()
		var idx int
		_, err := fmt.Sscanf(name, stills.Pattern, &idx)
		if err == nil || strings.HasPrefix(name, ".tmp-") {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

func readInput(path string) (*source.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return source.Read(f)
}
