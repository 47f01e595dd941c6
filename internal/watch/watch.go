// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package watch provides a debounced directory watcher for incoming
// conversion inputs.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for a file's contents
// to have stabilised, since inputs may be copied into the directory
// incrementally.
const FileDebounce = 500 * time.Millisecond

// Event is a stable input file, or a watcher error.
type Event struct {
	Path string
	Err  error
}

// exts is the set of input file extensions handled by the converter.
var exts = map[string]bool{
	".webp": true,
	".png":  true,
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tiff": true,
}

// Watch watches dir, sending an Event for each image file already in
// the directory and for each file subsequently created or rewritten,
// once no further write has been seen for the debounce duration. If
// dir does not exist it is created. If debounce is less than zero,
// FileDebounce is used. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, events chan<- Event, debounce time.Duration, log *slog.Logger) error {
	if debounce < 0 {
		debounce = FileDebounce
	}
	log = log.With(slog.String("component", "zoetrope.watch"))

	_, err := os.Stat(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		err = os.MkdirAll(dir, 0o755)
		if err != nil {
			return err
		}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	err = watcher.Add(dir)
	if err != nil {
		return err
	}

	de, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range de {
		if e.IsDir() || !wanted(e.Name()) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case events <- Event{Path: filepath.Join(dir, e.Name())}:
		}
	}

	pending := make(map[string]*time.Timer)
	stable := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-watcher.Events:
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if !wanted(ev.Name) {
				continue
			}
			if t, ok := pending[ev.Name]; ok {
				t.Reset(debounce)
				continue
			}
			log.LogAttrs(ctx, slog.LevelDebug, "pending input", slog.String("path", ev.Name))
			name := ev.Name
			pending[name] = time.AfterFunc(debounce, func() {
				select {
				case <-ctx.Done():
				case stable <- name:
				}
			})
		case name := <-stable:
			delete(pending, name)
			fi, err := os.Stat(name)
			if err != nil || fi.IsDir() {
				// Deleted or replaced before it stabilised.
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case events <- Event{Path: name}:
			}
		case err := <-watcher.Errors:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case events <- Event{Err: err}:
			}
		}
	}
}

// wanted returns whether the file name has a handled image extension.
func wanted(name string) bool {
	return exts[strings.ToLower(filepath.Ext(name))]
}
