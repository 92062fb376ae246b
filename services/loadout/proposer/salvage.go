// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposer

import (
	"encoding/json"
	"regexp"
	"strings"
)

var openingFence = regexp.MustCompile("^```[a-zA-Z0-9]*\n?")

// ParseJSON extracts a JSON value from raw model output.
//
// # Description
//
// Models wrap JSON in code fences, prefix it with chatter, or trail it with
// explanations. ParseJSON strips a leading fence and trailing backticks,
// tries the whole text, then scans for the first balanced {...} block that
// parses, then the first balanced [...] block. Brackets inside JSON strings
// are ignored while scanning.
//
// # Outputs
//
//   - json.RawMessage: The extracted value. Nil when ok is false.
//   - bool: True if any candidate parsed.
//
// # Examples
//
//	raw, ok := ParseJSON("Sure! ```json\n{\"a\": 1}\n```")
//	// raw == `{"a": 1}`, ok == true
func ParseJSON(raw string) (json.RawMessage, bool) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = openingFence.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimRight(cleaned, "`")
	}

	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), true
	}

	for _, pair := range [...][2]byte{{'{', '}'}, {'[', ']'}} {
		if block, ok := firstBalanced(cleaned, pair[0], pair[1]); ok {
			return block, true
		}
	}
	return nil, false
}

// firstBalanced tries every occurrence of open as a start position and
// returns the first balanced block that is valid JSON.
func firstBalanced(s string, open, close byte) (json.RawMessage, bool) {
	for start := strings.IndexByte(s, open); start != -1; {
		if end := matchClose(s, start, open, close); end != -1 {
			if candidate := s[start : end+1]; json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), true
			}
		}
		next := strings.IndexByte(s[start+1:], open)
		if next == -1 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchClose returns the index of the bracket closing s[start], or -1.
func matchClose(s string, start int, open, close byte) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
