// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history stores the most recent accepted loadout per role/enemy key.
//
// # Description
//
// Stored values come in two shapes: a loadout object, or the legacy pair
// [loadout, ok]. Decode turns either into an Entry exactly once, at the
// storage boundary. Everything past the boundary works with Entry and never
// inspects raw shapes again.
package history

import (
	"bytes"
	"encoding/json"

	"github.com/AleutianAI/LoadoutForge/services/loadout"
)

// Entry is a decoded history value: either Valid(loadout) or Invalid.
type Entry struct {
	loadout loadout.Loadout
	valid   bool
}

// Invalid is the entry for absent or malformed values.
var Invalid = Entry{}

// Valid wraps an accepted loadout.
func Valid(l loadout.Loadout) Entry {
	return Entry{loadout: l, valid: true}
}

// Loadout returns the wrapped loadout and whether the entry is valid.
func (e Entry) Loadout() (loadout.Loadout, bool) {
	if !e.valid {
		return loadout.Loadout{}, false
	}
	return e.loadout.Clone(), true
}

// IsValid reports whether the entry holds a loadout.
func (e Entry) IsValid() bool { return e.valid }

// Ptr returns a copy of the loadout, or nil when invalid.
func (e Entry) Ptr() *loadout.Loadout {
	l, ok := e.Loadout()
	if !ok {
		return nil
	}
	return &l
}

// Decode converts a raw JSON history value into an Entry.
//
// # Description
//
// Accepted shapes:
//   - {"loadout": {...}, "stratagems": [...], ...}
//   - [{"loadout": {...}, "stratagems": [...]}, true]
//
// A pair whose flag is not true, an object missing either key, or anything
// that fails to decode yields Invalid.
func Decode(raw []byte) Entry {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Invalid
	}
	switch raw[0] {
	case '{':
		return decodeObject(raw)
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return Invalid
		}
		var ok bool
		if err := json.Unmarshal(pair[1], &ok); err != nil || !ok {
			return Invalid
		}
		return decodeObject(pair[0])
	default:
		return Invalid
	}
}

func decodeObject(raw []byte) Entry {
	var shape struct {
		Loadout    json.RawMessage `json:"loadout"`
		Stratagems json.RawMessage `json:"stratagems"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return Invalid
	}
	if !isKind(shape.Loadout, '{') || !isKind(shape.Stratagems, '[') {
		return Invalid
	}
	var l loadout.Loadout
	if err := json.Unmarshal(raw, &l); err != nil {
		return Invalid
	}
	return Valid(l)
}

func isKind(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}

// Encode renders a loadout in the current (object) shape.
func Encode(l loadout.Loadout) ([]byte, error) {
	if l.Stratagems == nil {
		l.Stratagems = []loadout.Item{}
	}
	return json.Marshal(l)
}
