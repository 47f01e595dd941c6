// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version reports the build version.
package version

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// String returns the build version from the binary's build info.
func String() (string, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", errors.New("no build info")
	}
	var revision, modified string
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs.revision":
			revision = bs.Value
		case "vcs.modified":
			modified = bs.Value
		}
	}
	switch {
	case revision == "":
		return bi.Main.Version, nil
	case modified == "true":
		return fmt.Sprintf("%s %s (modified)", bi.Main.Version, revision), nil
	default:
		return fmt.Sprintf("%s %s", bi.Main.Version, revision), nil
	}
}
