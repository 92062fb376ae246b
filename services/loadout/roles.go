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

import "strings"

// Known roles and enemy factions.
var (
	Roles   = []string{"Crowd Control", "Anti-Tank", "Saboteur", "Stratagem Support"}
	Enemies = []string{"automatons", "terminids", "illuminate"}

	roleWeights  = []float64{0.35, 0.35, 0.10, 0.20}
	enemyWeights = []float64{0.36, 0.34, 0.30}
)

// ChooseRole picks a role using the fixed role weights.
func ChooseRole(s *Sampler) string {
	return Roles[s.PickIndex(roleWeights)]
}

// ChooseEnemy picks an enemy faction using the fixed enemy weights.
func ChooseEnemy(s *Sampler) string {
	return Enemies[s.PickIndex(enemyWeights)]
}

// Keys returns every role/enemy history key.
func Keys() []string {
	keys := make([]string, 0, len(Roles)*len(Enemies))
	for _, r := range Roles {
		for _, e := range Enemies {
			keys = append(keys, Key(r, e))
		}
	}
	return keys
}

// SplitKey splits a history key into role and enemy. Keys without an
// underscore yield the whole key as role.
func SplitKey(key string) (role, enemy string) {
	role, enemy, _ = strings.Cut(key, "_")
	return role, enemy
}
