// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArgs(t *testing.T) {
	got := args("frames/%05d.png", 25, "out.mp4")
	want := []string{
		"-hide_banner",
		"-y",
		"-framerate", "25",
		"-i", "frames/%05d.png",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"out.mp4",
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected arguments:\n%s", cmp.Diff(want, got))
	}
}

// stub writes a fake ffmpeg executable that prints its arguments to
// a file and exits with the given status.
func stub(t *testing.T, status int) (path, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("no shell stub on windows")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	path = filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\necho 'stderr detail' >&2\nexit " + map[int]string{0: "0", 1: "1"}[status] + "\n"
	err := os.WriteFile(path, []byte(script), 0o755)
	if err != nil {
		t.Fatal(err)
	}
	return path, argsFile
}

func TestEncode(t *testing.T) {
	path, argsFile := stub(t, 0)
	e := Encoder{Path: path}
	err := e.Encode(context.Background(), "frames", 10, "out.mp4")
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(string(b))
	if !strings.Contains(got, "-framerate 10") || !strings.Contains(got, filepath.Join("frames", "%05d.png")) {
		t.Errorf("unexpected encoder invocation: %q", got)
	}
}

func TestEncodeFailure(t *testing.T) {
	path, _ := stub(t, 1)
	e := Encoder{Path: path}
	err := e.Encode(context.Background(), "frames", 10, "out.mp4")
	if err == nil {
		t.Fatal("expected error from failing encoder")
	}
	if !strings.Contains(err.Error(), "stderr detail") {
		t.Errorf("error does not carry encoder diagnostics: %v", err)
	}
}
