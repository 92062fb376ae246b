// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided role and enemy names before they
// become history keys.
//
// History keys are "{role}_{enemy}" and end up as badger keys, sqlite rows
// and JSON object keys. A name containing the separator would make the key
// ambiguous, and control characters would leak into logs and files.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxKeyPartLen bounds a role or enemy name, in bytes.
const MaxKeyPartLen = 64

// keyPartPattern matches a role or enemy name.
// Allows: letters, digits, spaces, dots, apostrophes, hyphens.
// Must start with a letter or digit. No underscores (the key separator).
var keyPartPattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} .'\-]*$`)

// ValidateKeyPart validates a role or enemy name.
//
// Valid names:
//   - 1-64 bytes
//   - Letters and digits in any script
//   - Spaces, dots, apostrophes and hyphens after the first character
//
// Example:
//
//	if err := validation.ValidateKeyPart(role); err != nil {
//	    return fmt.Errorf("invalid role: %w", err)
//	}
func ValidateKeyPart(s string) error {
	if s == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(s) > MaxKeyPartLen {
		return fmt.Errorf("name too long: %d bytes (max %d)", len(s), MaxKeyPartLen)
	}
	if !keyPartPattern.MatchString(s) {
		return fmt.Errorf("invalid name %q (letters, digits, spaces, dots, apostrophes or hyphens only)", s)
	}
	return nil
}

// SanitizeKeyPart trims surrounding space and validates the result.
// Case is preserved: "Anti-Tank" and "anti-tank" are different keys.
func SanitizeKeyPart(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateKeyPart(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// SanitizeOptional is SanitizeKeyPart for inputs where empty means "pick
// one for me". An empty or all-space input returns "" without error.
func SanitizeOptional(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return SanitizeKeyPart(s)
}
