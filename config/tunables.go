// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config holds the analyzer-wide tunables spec.md leaves as named
// constants (SET_THRESHOLD, the trie node cap, the collaboration-round
// cap): SPEC_FULL.md §4.10 turns them into an optional YAML document so a
// driver can override them without a recompile, the same way the teacher
// loads structured config through sigs.k8s.io/yaml rather than flag-only
// configuration.
package config

import (
	"os"

	"sigs.k8s.io/yaml"

	"github.com/karelklic/absint/domain"
)

// Default values, matching spec.md's documented defaults exactly.
const (
	DefaultSetThreshold        = 20
	DefaultTrieNodeCap         = 64
	DefaultCollaborationRounds = 8
	DefaultNarrowingRounds     = 8
)

// Tunables is the YAML-serializable shape of the analyzer's adjustable
// limits. Zero fields mean "use the documented default" everywhere they
// are threaded into a domain.Environment, matching the zero-means-default
// convention domain.Environment already documents for these same fields.
type Tunables struct {
	SetThreshold        int `json:"setThreshold,omitempty"`
	TrieNodeCap         int `json:"trieNodeCap,omitempty"`
	CollaborationRounds int `json:"collaborationRounds,omitempty"`
	NarrowingRounds     int `json:"narrowingRounds,omitempty"`
}

// Default returns the spec-documented defaults.
func Default() Tunables {
	return Tunables{
		SetThreshold:        DefaultSetThreshold,
		TrieNodeCap:         DefaultTrieNodeCap,
		CollaborationRounds: DefaultCollaborationRounds,
		NarrowingRounds:     DefaultNarrowingRounds,
	}
}

// Load reads Tunables from a YAML document at path. A missing file is not
// an error: it yields the defaults, since config is optional (SPEC_FULL.md
// §4.10). Any other read or parse error is returned as-is.
func Load(path string) (Tunables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return Tunables{}, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, err
	}
	t.fillDefaults()
	return t, nil
}

// fillDefaults restores the documented default for any field a partial
// YAML document left at zero.
func (t *Tunables) fillDefaults() {
	if t.SetThreshold <= 0 {
		t.SetThreshold = DefaultSetThreshold
	}
	if t.TrieNodeCap <= 0 {
		t.TrieNodeCap = DefaultTrieNodeCap
	}
	if t.CollaborationRounds <= 0 {
		t.CollaborationRounds = DefaultCollaborationRounds
	}
	if t.NarrowingRounds <= 0 {
		t.NarrowingRounds = DefaultNarrowingRounds
	}
}

// Apply threads the tunables into a domain.Environment's own fields, the
// one place spec.md §4.1/§4.2/§4.1-item-9 actually consume them.
func (t Tunables) Apply(env *domain.Environment) {
	env.SetThreshold = t.SetThreshold
	env.TrieNodeCap = t.TrieNodeCap
	env.CollaborationRounds = t.CollaborationRounds
	env.NarrowingRounds = t.NarrowingRounds
}
