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

import "github.com/bytedance/gopkg/util/xxhash3"

// Stats is a snapshot of an allocator's usage.
type Stats struct {
	ArenaSize  int
	BaseUnit   int
	NumClasses int

	// FreeBlocks[i] is the number of free blocks of class i.
	FreeBlocks []int

	FreeBytes int // bytes in free blocks, headers included
	UsedBytes int // bytes in allocated blocks, headers included
	Allocated int // number of allocated blocks
}

// Stats walks the free lists and reports current usage.
func (a *Allocator) Stats() Stats {
	s := Stats{
		ArenaSize:  len(a.arena),
		BaseUnit:   a.baseUnit,
		NumClasses: a.numClasses,
		FreeBlocks: make([]int, a.numClasses),
		UsedBytes:  a.usedBytes,
		Allocated:  a.allocated,
	}
	for class := 0; class < a.numClasses; class++ {
		n := a.countFree(class)
		s.FreeBlocks[class] = n
		s.FreeBytes += n * a.blockSize(class)
	}
	return s
}

// Available returns the total payload bytes of all free blocks.
func (a *Allocator) Available() int {
	total := 0
	for class := 0; class < a.numClasses; class++ {
		total += a.countFree(class) * (a.blockSize(class) - HeaderSize)
	}
	return total
}

func (a *Allocator) countFree(class int) int {
	n := 0
	last := a.last(class)
	for r := a.first(class); r != nilRef; r = a.next(fromRef(r)) {
		n++
		if r == last || !a.isValid(fromRef(r)) {
			break
		}
	}
	return n
}

// Digest fingerprints the arena bytes together with the free-list slots.
// Equal digests mean the allocator is in the same state byte for byte.
func (a *Allocator) Digest() uint64 {
	buf := make([]byte, 8+4*len(a.freeLists))
	le.PutUint64(buf, xxhash3.Hash(a.arena))
	for i, r := range a.freeLists {
		le.PutUint32(buf[8+4*i:], r)
	}
	return xxhash3.Hash(buf)
}
