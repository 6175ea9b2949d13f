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

package interp

import (
	"math/big"
	"testing"

	"github.com/karelklic/absint/domain"
	"github.com/karelklic/absint/state"
)

func TestWidenStateJumpsGrowingIntervalToInfinity(t *testing.T) {
	env := testEnv()
	recorded := state.New()
	recorded.SetVariable(reg{id: "i"}, domain.NewIntervalValue(env, 32, big.NewInt(0)))

	grown := domain.NewIntervalValue(env, 32, big.NewInt(0)).Join(domain.NewIntervalValue(env, 32, big.NewInt(1))).(*domain.Interval)
	proposed := state.New()
	proposed.SetVariable(reg{id: "i"}, grown)

	widenState(proposed, recorded)

	v, _ := proposed.FindVariable(reg{id: "i"})
	_, _, _, _, sTop, uTop, bottom := v.(*domain.Interval).Bounds()
	if bottom || !sTop || !uTop {
		t.Fatalf("expected a growing interval to widen straight to infinity, got sTop=%v uTop=%v bottom=%v", sTop, uTop, bottom)
	}
}

func TestWidenStateLeavesStableIntervalAlone(t *testing.T) {
	env := testEnv()
	recorded := state.New()
	recorded.SetVariable(reg{id: "i"}, domain.NewIntervalValue(env, 32, big.NewInt(3)))

	stable := domain.NewIntervalValue(env, 32, big.NewInt(3))
	proposed := state.New()
	proposed.SetVariable(reg{id: "i"}, stable)

	widenState(proposed, recorded)

	v, _ := proposed.FindVariable(reg{id: "i"})
	sLo, sHi, _, _, sTop, _, bottom := v.(*domain.Interval).Bounds()
	if bottom || sTop || sLo.Cmp(big.NewInt(3)) != 0 || sHi.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("a singleton that didn't grow shouldn't widen, got sLo=%v sHi=%v sTop=%v", sLo, sHi, sTop)
	}
}
