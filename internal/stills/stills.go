// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stills persists canvas snapshots as a numbered still-image
// sequence for an external encoder.
//
// Artifacts are named with fixed-width zero-padded indices so that
// lexicographic ordering matches frame order when the encoder globs
// the directory. Each artifact is written to a temporary file, synced
// and renamed into place, so a visible name always denotes a complete
// image. Snapshots are immutable once handed to the sink, so encoding
// may proceed on a bounded worker pool while the canvas continues.
package stills

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zoetrope-dev/zoetrope/internal/slogext"
)

// Pattern is the artifact naming pattern, shared with the external
// encoder's input glob.
const Pattern = "%05d.png"

// Name returns the artifact name for a frame index.
func Name(index int) string {
	return fmt.Sprintf(Pattern, index)
}

// Sink writes snapshots into a single destination directory. A Sink
// must not be shared between conversion jobs.
type Sink struct {
	dir string
	log *slog.Logger

	tasks chan task
	wg    sync.WaitGroup

	mu  sync.Mutex
	err error
}

type task struct {
	index int
	img   *image.NRGBA
}

// NewSink returns a sink writing to dir, creating it if necessary,
// with the given number of encoding workers.
func NewSink(dir string, workers int, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.New(slogext.DiscardHandler)
	}
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create frames directory: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	s := &Sink{
		dir:   dir,
		log:   log.With(slog.String("component", "zoetrope.stills")),
		tasks: make(chan task, workers),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.run()
	}
	return s, nil
}

// Put accepts the snapshot for the given frame index. The snapshot
// must not be mutated after the call. Put fails fast once any earlier
// write has failed; the sequence is then invalid as a whole.
func (s *Sink) Put(ctx context.Context, index int, img *image.NRGBA) error {
	if err := s.failed(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.tasks <- task{index: index, img: img}:
		return nil
	}
}

// Close waits for all accepted snapshots to be written and returns the
// first write error.
func (s *Sink) Close() error {
	close(s.tasks)
	s.wg.Wait()
	return s.failed()
}

func (s *Sink) run() {
	defer s.wg.Done()
	for t := range s.tasks {
		if s.failed() != nil {
			// Drain remaining work; the sequence is already invalid.
			continue
		}
		err := s.write(t)
		if err != nil {
			s.fail(err)
		}
	}
}

// write materializes one artifact durably: temp file, sync, rename.
func (s *Sink) write(t task) error {
	f, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("frame %d: %w", t.index, err)
	}
	defer os.Remove(f.Name())
	err = png.Encode(f, t.img)
	if err != nil {
		return errors.Join(fmt.Errorf("frame %d: encode: %w", t.index, err), f.Close())
	}
	err = f.Sync()
	if err != nil {
		return errors.Join(fmt.Errorf("frame %d: sync: %w", t.index, err), f.Close())
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("frame %d: %w", t.index, err)
	}
	dst := filepath.Join(s.dir, Name(t.index))
	err = os.Rename(f.Name(), dst)
	if err != nil {
		return fmt.Errorf("frame %d: %w", t.index, err)
	}
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "wrote frame", slog.Int("frame", t.index), slog.String("path", dst))
	return nil
}

func (s *Sink) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Sink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
