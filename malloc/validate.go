/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package malloc

import "github.com/cockroachdb/errors"

// Validate checks every invariant of the arena and the free-list index:
//
//   - the arena is an exact sequence of valid, non-overlapping blocks;
//   - each class list is strictly increasing by address, doubly linked
//     consistently, and ends at its recorded last block;
//   - every free block is listed exactly once, in the list of its class;
//   - the allocated block count matches.
//
// It returns an error wrapping ErrCorrupted describing the first violation.
func (a *Allocator) Validate() error {
	if a.arena == nil {
		return ErrClosed
	}

	free := make(map[int]struct{})
	allocated := 0
	off := 0
	for off < len(a.arena) {
		if !a.isBlock(off) {
			return errors.Wrapf(ErrCorrupted, "no block header at offset %d", off)
		}
		if a.isFree(off) {
			free[off] = struct{}{}
		} else {
			allocated++
		}
		off += a.blockSize(a.sizeClass(off))
	}
	if allocated != a.allocated {
		return errors.Wrapf(ErrCorrupted, "%d blocks allocated, %d recorded", allocated, a.allocated)
	}

	listed := 0
	for class := 0; class < a.numClasses; class++ {
		first, last := a.first(class), a.last(class)
		if (first == nilRef) != (last == nilRef) {
			return errors.Wrapf(ErrCorrupted, "class %d: first=%d last=%d", class, first, last)
		}
		prev := nilRef
		for r := first; r != nilRef; r = a.next(fromRef(r)) {
			b := fromRef(r)
			if _, ok := free[b]; !ok {
				return errors.Wrapf(ErrCorrupted, "class %d: offset %d listed but not a free block", class, b)
			}
			if c := a.sizeClass(b); c != class {
				return errors.Wrapf(ErrCorrupted, "class %d: offset %d has class %d", class, b, c)
			}
			if a.prev(b) != prev {
				return errors.Wrapf(ErrCorrupted, "class %d: offset %d prev link mismatch", class, b)
			}
			if prev != nilRef && r <= prev {
				return errors.Wrapf(ErrCorrupted, "class %d: offset %d out of address order", class, b)
			}
			listed++
			if listed > len(free) {
				return errors.Wrapf(ErrCorrupted, "class %d: more listed blocks than free blocks", class)
			}
			prev = r
		}
		if prev != last {
			return errors.Wrapf(ErrCorrupted, "class %d: chain ends at %d, last is %d", class, fromRef(prev), fromRef(last))
		}
	}
	if listed != len(free) {
		return errors.Wrapf(ErrCorrupted, "%d free blocks, %d listed", len(free), listed)
	}
	return nil
}
