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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/karelklic/absint/domain"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Default() {
		t.Fatalf("Load(missing) = %+v, want defaults %+v", got, Default())
	}
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Default() {
		t.Fatalf("Load(\"\") = %+v, want defaults %+v", got, Default())
	}
}

func TestLoadPartialDocumentFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	if err := os.WriteFile(path, []byte("setThreshold: 5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SetThreshold != 5 {
		t.Fatalf("SetThreshold = %d, want 5", got.SetThreshold)
	}
	if got.TrieNodeCap != DefaultTrieNodeCap {
		t.Fatalf("TrieNodeCap = %d, want default %d", got.TrieNodeCap, DefaultTrieNodeCap)
	}
	if got.CollaborationRounds != DefaultCollaborationRounds {
		t.Fatalf("CollaborationRounds = %d, want default %d", got.CollaborationRounds, DefaultCollaborationRounds)
	}
}

func TestApplyThreadsIntoEnvironment(t *testing.T) {
	tun := Tunables{SetThreshold: 3, TrieNodeCap: 7, CollaborationRounds: 2}
	env := &domain.Environment{}
	tun.Apply(env)
	if env.SetThreshold != 3 || env.TrieNodeCap != 7 || env.CollaborationRounds != 2 {
		t.Fatalf("Apply did not thread tunables into env: %+v", env)
	}
}
