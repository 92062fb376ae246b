// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loadout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var bumpSuffix = regexp.MustCompile(`^(.*?)(?:\s*(?:\((\d+)\)|#(\d+)))\s*$`)

// BumpName increments a trailing "(N)" or "#N" counter, or appends " (2)".
// The output always uses the "(N)" form.
//
//	BumpName("Anti-Tank vs terminids") // "Anti-Tank vs terminids (2)"
//	BumpName("Crowd Control (3)")      // "Crowd Control (4)"
//	BumpName("Saboteur #5")            // "Saboteur (6)"
func BumpName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Loadout (2)"
	}
	m := bumpSuffix.FindStringSubmatch(name)
	if m == nil {
		return name + " (2)"
	}
	digits := m[2]
	if digits == "" {
		digits = m[3]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		n = 1
	}
	return fmt.Sprintf("%s (%d)", strings.TrimSpace(m[1]), n+1)
}

// UniqueName bumps name until it is not in used.
func UniqueName(name string, used map[string]struct{}) string {
	if _, taken := used[name]; !taken && name != "" {
		return name
	}
	for {
		name = BumpName(name)
		if _, taken := used[name]; !taken {
			return name
		}
	}
}
