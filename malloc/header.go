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

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Header layout, little-endian, at the start of every block:
//
//	[0:4)   info: magic(13 bits) << 3 | right << 2 | lineage << 1 | free
//	[4:8)   size class
//	[8:12)  next free block (ref)
//	[12:16) prev free block (ref)
//
// A ref is an arena offset plus one, so that zeroed memory reads as "no link".
const (
	// HeaderSize is the size of the header at the start of each block.
	HeaderSize = 16

	// magic is the 13-bit alternating pattern stamped into every valid header.
	magic uint32 = 0x1555

	magicShift        = 3
	rightBit   uint32 = 0x4
	lineageBit uint32 = 0x2
	freeBit    uint32 = 0x1

	infoOff  = 0
	classOff = 4
	nextOff  = 8
	prevOff  = 12

	nilRef uint32 = 0
)

var le = binary.LittleEndian

func toRef(off int) uint32 { return uint32(off + 1) }
func fromRef(r uint32) int { return int(r) - 1 }

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// hasHeader reports whether a whole header fits at off.
func (a *Allocator) hasHeader(off int) bool {
	return off >= 0 && off <= len(a.arena)-HeaderSize
}

// isValid reports whether off holds a genuine header. Nothing else about a
// header may be read before this returns true.
func (a *Allocator) isValid(off int) bool {
	if !a.hasHeader(off) {
		return false
	}
	return le.Uint32(a.arena[off+infoOff:])>>magicShift == magic
}

func (a *Allocator) info(off int) uint32 { return le.Uint32(a.arena[off+infoOff:]) }

func (a *Allocator) isRightBuddy(off int) bool { return a.info(off)&rightBit != 0 }
func (a *Allocator) isFree(off int) bool       { return a.info(off)&freeBit != 0 }

func (a *Allocator) lineage(off int) uint32 { return (a.info(off) & lineageBit) >> 1 }

func (a *Allocator) rightFlag(off int) uint32 { return (a.info(off) & rightBit) >> 2 }

func (a *Allocator) sizeClass(off int) int { return int(le.Uint32(a.arena[off+classOff:])) }

func (a *Allocator) next(off int) uint32 { return le.Uint32(a.arena[off+nextOff:]) }
func (a *Allocator) prev(off int) uint32 { return le.Uint32(a.arena[off+prevOff:]) }

func (a *Allocator) setNext(off int, r uint32) { le.PutUint32(a.arena[off+nextOff:], r) }
func (a *Allocator) setPrev(off int, r uint32) { le.PutUint32(a.arena[off+prevOff:], r) }

// configure stamps magic, flags and size class at off. Links are untouched.
func (a *Allocator) configure(off int, right, lineage, free uint32, class int) error {
	if right > 1 || lineage > 1 || free > 1 {
		return errors.Wrapf(ErrInvalidFlag, "right=%d lineage=%d free=%d", right, lineage, free)
	}
	if !a.hasHeader(off) {
		return errors.Wrapf(ErrNullReference, "configure at offset %d", off)
	}
	info := magic<<magicShift | right<<2 | lineage<<1 | free
	le.PutUint32(a.arena[off+infoOff:], info)
	le.PutUint32(a.arena[off+classOff:], uint32(class))
	return nil
}

// configureWithLinks is configure plus the list links; used when linking.
func (a *Allocator) configureWithLinks(off int, right, lineage, free uint32, class int, next, prev uint32) error {
	if err := a.configure(off, right, lineage, free, class); err != nil {
		return err
	}
	a.setNext(off, next)
	a.setPrev(off, prev)
	return nil
}

// destroy zeroes the header at off. The bytes become part of a neighbour's block.
func (a *Allocator) destroy(off int) {
	h := a.arena[off : off+HeaderSize]
	for i := range h {
		h[i] = 0
	}
}

// blockSize returns the size in bytes of a block of the given class.
func (a *Allocator) blockSize(class int) int {
	return int(fibs[class]) * a.baseUnit
}

// isBlock reports whether off holds a valid header whose class is configured
// and whose block lies entirely inside the arena.
func (a *Allocator) isBlock(off int) bool {
	if !a.isValid(off) {
		return false
	}
	class := a.sizeClass(off)
	return class < a.numClasses && off+a.blockSize(class) <= len(a.arena)
}
