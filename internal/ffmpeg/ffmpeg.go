// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ffmpeg invokes the external ffmpeg encoder on a still-image
// sequence.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zoetrope-dev/zoetrope/internal/stills"
)

// evenScale rounds output dimensions down to even values, a
// requirement of the downstream video codec. The frame sequence is
// not responsible for this adjustment.
const evenScale = "scale=trunc(iw/2)*2:trunc(ih/2)*2"

// Encoder runs ffmpeg on a directory of numbered stills.
type Encoder struct {
	// Path is the ffmpeg executable. If empty, "ffmpeg" is
	// resolved from PATH.
	Path string

	Log *slog.Logger
}

// Encode encodes the numbered frames in framesDir at the given frame
// rate into dst. The whole job fails on any encoder error; there is
// no partial output contract.
func (e *Encoder) Encode(ctx context.Context, framesDir string, rate int, dst string) error {
	name := e.Path
	if name == "" {
		name = "ffmpeg"
	}
	args := args(filepath.Join(framesDir, stills.Pattern), rate, dst)
	if e.Log != nil {
		e.Log.LogAttrs(ctx, slog.LevelDebug, "run encoder", slog.String("path", name), slog.Any("args", args))
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(&stderr))
	}
	return nil
}

// args returns the ffmpeg argument list for encoding the sequence
// matched by pattern at the given frame rate into dst.
func args(pattern string, rate int, dst string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-framerate", strconv.Itoa(rate),
		"-i", pattern,
		"-vf", evenScale,
		"-pix_fmt", "yuv420p",
		dst,
	}
}

// lastLine returns the final non-empty line of buf, where ffmpeg
// reports its terminal error.
func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
