// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Mode controls how rich terminal output is.
type Mode string

const (
	// ModeRich uses colors, boxes and icons.
	ModeRich Mode = "rich"

	// ModePlain keeps the layout but drops styling.
	ModePlain Mode = "plain"

	// ModeMachine prints tab-separated lines for scripts.
	ModeMachine Mode = "machine"
)

// ModeEnv overrides output detection when set.
const ModeEnv = "LOADOUT_OUTPUT"

var (
	currentMode = ModeRich
	modeMu      sync.RWMutex
)

// CurrentMode returns the process-wide output mode.
func CurrentMode() Mode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode sets the process-wide output mode.
func SetMode(m Mode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode converts a string to a Mode. Unknown values yield ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "color":
		return ModeRich
	case "machine", "quiet", "q", "tsv":
		return ModeMachine
	default:
		return ModePlain
	}
}

// InitMode picks the output mode for f: LOADOUT_OUTPUT if set, rich on a
// terminal, machine otherwise.
func InitMode(f *os.File) Mode {
	m := DetectMode(os.Getenv(ModeEnv), f)
	SetMode(m)
	return m
}

// DetectMode applies the override if non-empty, else checks whether f is a
// terminal.
func DetectMode(override string, f *os.File) Mode {
	if override != "" {
		return ParseMode(override)
	}
	if f != nil && IsTerminal(f.Fd()) {
		return ModeRich
	}
	return ModeMachine
}

// IsTerminal reports whether fd is a terminal, including Cygwin/MSYS ptys.
func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
