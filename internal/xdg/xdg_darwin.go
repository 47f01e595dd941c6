// Copyright ©2025 The zoetrope authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin

package xdg

const (
	_HOME = "HOME"

	// $XDG_CONFIG_HOME or $HOME/Library/Application Support
	key_XDG_CONFIG_HOME = "XDG_CONFIG_HOME"
	def_XDG_CONFIG_HOME = "Library/Application Support"

	// $XDG_CONFIG_DIRS or /Library/Application Support
	key_XDG_CONFIG_DIRS = "XDG_CONFIG_DIRS"
	def_XDG_CONFIG_DIRS = "/Library/Application Support"
)
