// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides zoetrope configuration types and loading.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
)

// System is a complete configuration. Zero values defer to built-in
// defaults and command line flags.
type System struct {
	// FFmpeg is the path to the external encoder executable.
	FFmpeg string `toml:"ffmpeg"`

	// OutputDir is the destination directory for encoded videos.
	// If empty, videos are written beside their inputs.
	OutputDir string `toml:"output_dir"`

	// Workers is the number of concurrent still-image writers.
	Workers int `toml:"workers"`

	// Journal is the path of the sqlite conversion ledger. An
	// empty path disables journalling.
	Journal string `toml:"journal"`

	// KeepFrames retains still sequences after encoding.
	KeepFrames bool `toml:"keep_frames"`

	LogLevel  *slog.Level `toml:"log_level"`
	AddSource *bool       `toml:"log_add_source"`
}

// Load reads the TOML configuration at path. Unknown keys are
// rejected so misspelled configuration does not silently default.
func Load(path string) (*System, error) {
	var sys System
	md, err := toml.DecodeFile(path, &sys)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if und := md.Undecoded(); len(und) != 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return &sys, nil
}
