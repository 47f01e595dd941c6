// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ptr[T any](v T) *T { return &v }

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"
output_dir = "/srv/videos"
workers = 4
journal = "/var/lib/zoetrope/journal.sqlite3"
keep_frames = true
log_level = "debug"
log_add_source = true
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := &System{
		FFmpeg:     "/opt/ffmpeg/bin/ffmpeg",
		OutputDir:  "/srv/videos",
		Workers:    4,
		Journal:    "/var/lib/zoetrope/journal.sqlite3",
		KeepFrames: true,
		LogLevel:   ptr(slog.LevelDebug),
		AddSource:  ptr(true),
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected configuration:\n%s", cmp.Diff(want, got))
	}
}

func TestLoadUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte("ffmpge = \"typo\"\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown keys: ffmpge") {
		t.Errorf("unexpected error: %v", err)
	}
}
