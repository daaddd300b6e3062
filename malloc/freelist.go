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

// freeLists holds two refs per size class: freeLists[2*i] is the lowest
// addressed free block of class i and freeLists[2*i+1] the highest.
// Each class list is doubly linked through the headers in strict address order.

func (a *Allocator) first(class int) uint32 { return a.freeLists[2*class] }
func (a *Allocator) last(class int) uint32  { return a.freeLists[2*class+1] }

// insert links the free block at off into its class list at its address position.
func (a *Allocator) insert(off int) error {
	if !a.isBlock(off) {
		return errors.Wrapf(ErrNullReference, "insert at offset %d", off)
	}
	class := a.sizeClass(off)
	i := 2 * class
	first, last := a.freeLists[i], a.freeLists[i+1]
	h := toRef(off)

	if first == nilRef && last == nilRef {
		a.setNext(off, nilRef)
		a.setPrev(off, nilRef)
		a.freeLists[i], a.freeLists[i+1] = h, h
		return nil
	}
	if first == nilRef || last == nilRef {
		return errors.Wrapf(ErrMissingBoundary, "class %d", class)
	}

	// Walk to the first block that is not below h, or to the last block.
	cmp := first
	for h > cmp && cmp != last {
		c := fromRef(cmp)
		if !a.isValid(c) {
			return errors.Wrapf(ErrBrokenLink, "class %d: invalid header at offset %d", class, c)
		}
		n := a.next(c)
		if n == nilRef {
			return errors.Wrapf(ErrBrokenLink, "class %d: chain ends at offset %d before last block", class, c)
		}
		cmp = n
	}
	if h == cmp {
		return errors.Wrapf(ErrDuplicateLink, "class %d offset %d", class, off)
	}
	c := fromRef(cmp)
	if !a.isValid(c) {
		return errors.Wrapf(ErrBrokenLink, "class %d: invalid header at offset %d", class, c)
	}

	if h > cmp { // past the last block
		a.setNext(c, h)
		a.setPrev(off, cmp)
		a.setNext(off, nilRef)
		a.freeLists[i+1] = h
		return nil
	}

	p := nilRef
	if cmp != first {
		p = a.prev(c)
		if p == nilRef || !a.isValid(fromRef(p)) {
			return errors.Wrapf(ErrBrokenLink, "class %d: missing prev link at offset %d", class, c)
		}
	}
	if p == nilRef {
		a.freeLists[i] = h
	} else {
		a.setNext(fromRef(p), h)
	}
	a.setPrev(off, p)
	a.setNext(off, cmp)
	a.setPrev(c, h)
	return nil
}

// eject unlinks the block at off from its class list and clears its links.
func (a *Allocator) eject(off int) error {
	if !a.isBlock(off) {
		return errors.Wrapf(ErrNullReference, "eject at offset %d", off)
	}
	class := a.sizeClass(off)
	i := 2 * class
	h := toRef(off)
	n, p := a.next(off), a.prev(off)

	switch {
	case p == nilRef && n == nilRef: // sole element
		if a.freeLists[i] != h || a.freeLists[i+1] != h {
			return errors.Wrapf(ErrNotLinked, "class %d offset %d", class, off)
		}
		a.freeLists[i], a.freeLists[i+1] = nilRef, nilRef
	case p == nilRef: // first
		if a.freeLists[i] != h {
			return errors.Wrapf(ErrNotLinked, "class %d offset %d", class, off)
		}
		if !a.isValid(fromRef(n)) {
			return errors.Wrapf(ErrBrokenLink, "class %d: next of %d", class, off)
		}
		a.setPrev(fromRef(n), nilRef)
		a.freeLists[i] = n
	case n == nilRef: // last
		if a.freeLists[i+1] != h {
			return errors.Wrapf(ErrNotLinked, "class %d offset %d", class, off)
		}
		if !a.isValid(fromRef(p)) {
			return errors.Wrapf(ErrBrokenLink, "class %d: prev of %d", class, off)
		}
		a.setNext(fromRef(p), nilRef)
		a.freeLists[i+1] = p
	default: // middle
		po, no := fromRef(p), fromRef(n)
		if !a.isValid(po) || !a.isValid(no) {
			return errors.Wrapf(ErrBrokenLink, "class %d: neighbours of %d", class, off)
		}
		if a.next(po) != h || a.prev(no) != h {
			return errors.Wrapf(ErrNotLinked, "class %d offset %d", class, off)
		}
		a.setNext(po, n)
		a.setPrev(no, p)
	}
	a.setNext(off, nilRef)
	a.setPrev(off, nilRef)
	return nil
}

// linked reports whether the block at off is a member of its class list.
func (a *Allocator) linked(off int) bool {
	if !a.isBlock(off) {
		return false
	}
	class := a.sizeClass(off)
	h := toRef(off)
	for r := a.first(class); r != nilRef; r = a.next(fromRef(r)) {
		if r == h {
			return true
		}
		if r > h || r == a.last(class) || !a.isValid(fromRef(r)) {
			return false
		}
	}
	return false
}
