// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg locates configuration files in the platform's standard
// configuration directories.
package xdg

import (
	"os"
	"path/filepath"
	"syscall"
)

// Config returns the path to the named file found first in the user's
// configuration directory and then in the system configuration
// directories. If no file is found Config returns ENOENT.
func Config(name string) (string, error) {
	base, ok := configHome()
	if ok {
		path := filepath.Join(base, name)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
	}
	list, ok := envOrDefault(key_XDG_CONFIG_DIRS, def_XDG_CONFIG_DIRS, "")
	if !ok {
		return "", syscall.ENOENT
	}
	for _, base := range filepath.SplitList(list) {
		path := filepath.Join(base, name)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
	}
	return "", syscall.ENOENT
}

// configHome returns the path corresponding to XDG_CONFIG_HOME.
func configHome() (string, bool) {
	return envOrDefault(key_XDG_CONFIG_HOME, def_XDG_CONFIG_HOME, _HOME)
}

// envOrDefault returns the path or path list corresponding to the
// provided key and default. If home is not empty, the default is
// returned relative to home unless it is already absolute.
func envOrDefault(key, def, home string) (string, bool) {
	val, ok := os.LookupEnv(key)
	if ok {
		return val, true
	}
	if def == "" {
		return "", false
	}
	if home == "" || filepath.IsAbs(def) {
		return def, true
	}
	base, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(base, def), true
}
