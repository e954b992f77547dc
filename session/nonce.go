// Copyright (C) 2025 pkstl-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import "github.com/pkstl/pkstl/perr"

// nonceWindow is the C4 anti-replay window: a floor (next expected nonce)
// plus a bounded set of out-of-order nonces accepted above the floor. A
// map is sufficient here — maxOrphans is small and bounded by config, so
// there is no need for the sorted-tree/bitmap structures spec.md §9
// suggests for larger windows.
type nonceWindow struct {
	floor      uint64
	orphans    map[uint64]struct{}
	maxOrphans int
}

func newNonceWindow(maxOrphans int) *nonceWindow {
	return &nonceWindow{
		orphans:    make(map[uint64]struct{}, maxOrphans),
		maxOrphans: maxOrphans,
	}
}

// accept implements the algorithm in spec.md §4.4.
func (w *nonceWindow) accept(n uint64) error {
	switch {
	case n == w.floor:
		w.floor++
		for {
			if _, ok := w.orphans[w.floor]; !ok {
				break
			}
			delete(w.orphans, w.floor)
			w.floor++
		}
		return nil

	case n > w.floor:
		if _, ok := w.orphans[n]; ok {
			return perr.ErrInvalidNonce
		}
		if len(w.orphans) >= w.maxOrphans {
			return perr.ErrTooManyUnorderedMsgs
		}
		w.orphans[n] = struct{}{}
		return nil

	default:
		return perr.ErrInvalidNonce
	}
}

// snapshot returns a deep copy, used by TryClone so the clone inherits the
// window state without aliasing the original's map.
func (w *nonceWindow) snapshot() *nonceWindow {
	clone := &nonceWindow{
		floor:      w.floor,
		orphans:    make(map[uint64]struct{}, len(w.orphans)),
		maxOrphans: w.maxOrphans,
	}
	for n := range w.orphans {
		clone.orphans[n] = struct{}{}
	}
	return clone
}
