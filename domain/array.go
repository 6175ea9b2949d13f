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

package domain

// possibleIndices recovers the concrete index values an index domain can
// take on, for array/vector element access (spec.md §4.1 items 5-6). It
// understands the two integer domains that can show up as an index
// (IntSet, Interval); anything else, or an unbounded range, reports
// allUnknown so the caller falls back to joining over every element.
func possibleIndices(idx Domain, length int64) (indices []int64, allUnknown bool) {
	switch v := idx.(type) {
	case *IntSet:
		if v.IsBottom() {
			return nil, false
		}
		if v.top {
			return nil, true
		}
		for raw := range v.values {
			i := int64(raw)
			if i >= 0 && i < length {
				indices = append(indices, i)
			}
		}
		return indices, false
	case *Interval:
		if v.bottom {
			return nil, false
		}
		if v.uTop {
			return nil, true
		}
		lo, hi := v.uLo.Int64(), v.uHi.Int64()
		if hi-lo > 4096 {
			// too wide to enumerate usefully; treat as unknown rather
			// than building a huge slice.
			return nil, true
		}
		for i := lo; i <= hi; i++ {
			if i >= 0 && i < length {
				indices = append(indices, i)
			}
		}
		return indices, false
	default:
		return nil, true
	}
}
