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

// A block of class n splits into a left buddy of class n-2 and a right buddy of
// class n-1 (or two class 0 blocks when n is 1). The right buddy sits at a
// computable address, the left one does not, because its size is not known
// from the right buddy's header.
//
// The flag bits make split and coalesce exact inverses:
//
//	left.right  = 0            left.lineage  = parent.right
//	right.right = 1            right.lineage = parent.lineage

// findBuddy returns the offset of the block that can merge with off.
// ok is false when there is none, which is not an error.
func (a *Allocator) findBuddy(off int) (buddy int, ok bool) {
	if !a.isBlock(off) {
		return 0, false
	}
	if !a.isRightBuddy(off) {
		b := off + a.blockSize(a.sizeClass(off))
		if b < len(a.arena) && a.isBlock(b) && a.isRightBuddy(b) {
			return b, true
		}
		return 0, false
	}

	// Left buddy: scan every class for a free block ending exactly at off.
	// Lists are address ordered, so a class is done once it passes off.
	for class := 0; class < a.numClasses; class++ {
		last := a.last(class)
		size := a.blockSize(class)
		for r := a.first(class); r != nilRef; r = a.next(fromRef(r)) {
			b := fromRef(r)
			if b >= off || !a.isValid(b) {
				break
			}
			if b+size == off {
				if a.isRightBuddy(b) {
					return 0, false
				}
				return b, true
			}
			if r == last {
				break
			}
		}
	}
	return 0, false
}

// split turns the free block at off into a left block of leftClass at off and a
// right block of rightClass right after it, both free and linked.
// It does nothing and returns false if the block cannot be split that way.
func (a *Allocator) split(off, leftClass, rightClass int) (bool, error) {
	if !a.isBlock(off) || !a.isFree(off) {
		return false, nil
	}
	class := a.sizeClass(off)
	if class == 0 || leftClass < 0 || rightClass < 0 ||
		leftClass >= a.numClasses || rightClass >= a.numClasses ||
		fibs[leftClass]+fibs[rightClass] != fibs[class] {
		return false, nil
	}
	parentRight, parentLineage := a.rightFlag(off), a.lineage(off)

	if err := a.eject(off); err != nil {
		return false, err
	}
	r := off + a.blockSize(leftClass)
	if err := a.configureWithLinks(r, 1, parentLineage, 1, rightClass, nilRef, nilRef); err != nil {
		return false, err
	}
	if err := a.configure(off, 0, parentRight, 1, leftClass); err != nil {
		return false, err
	}
	if err := a.insert(r); err != nil {
		return false, err
	}
	if err := a.insert(off); err != nil {
		return false, err
	}
	if a.trace {
		a.log.Debug("split", "offset", off, "class", class, "left", leftClass, "right", rightClass)
	}
	return true, nil
}

// coalesce merges the free buddies left and right into one free block at left
// and returns its offset.
func (a *Allocator) coalesce(left, right int) (int, error) {
	if !a.isBlock(left) || !a.isBlock(right) {
		return 0, errors.Wrapf(ErrNullReference, "coalesce %d with %d", left, right)
	}
	lc, rc := a.sizeClass(left), a.sizeClass(right)
	pair := rc == lc+1 || (lc == 0 && rc == 0)
	if !pair || !a.isFree(left) || !a.isFree(right) || !a.isRightBuddy(right) ||
		left+a.blockSize(lc) != right {
		return 0, errors.Wrapf(ErrNotBuddies, "offset %d class %d, offset %d class %d", left, lc, right, rc)
	}
	merged := lc + 2
	if lc == 0 && rc == 0 {
		merged = 1
	}
	if merged >= a.numClasses {
		return 0, errors.Wrapf(ErrNotBuddies, "merged class %d exceeds arena", merged)
	}
	parentRight, parentLineage := a.lineage(left), a.lineage(right)

	if err := a.eject(right); err != nil {
		return 0, err
	}
	if err := a.eject(left); err != nil {
		return 0, err
	}
	if err := a.configure(left, parentRight, parentLineage, 1, merged); err != nil {
		return 0, err
	}
	a.destroy(right)
	if err := a.insert(left); err != nil {
		return 0, err
	}
	if a.trace {
		a.log.Debug("coalesce", "offset", left, "class", merged)
	}
	return left, nil
}
