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

// Structural errors. Any of these means the free-list index or a header is
// corrupted; the allocator records the first one and refuses further work.
var (
	// ErrInvalidFlag is returned when a header flag argument is not 0 or 1.
	ErrInvalidFlag = errors.New("malloc: flag out of range")

	// ErrBrokenLink indicates a free list whose chain ends before its recorded last block.
	ErrBrokenLink = errors.New("malloc: broken free-list link")

	// ErrDuplicateLink indicates an insert of a block already present in its list.
	ErrDuplicateLink = errors.New("malloc: block already linked")

	// ErrMissingBoundary indicates a list with only one of its first/last slots set.
	ErrMissingBoundary = errors.New("malloc: free list missing first or last block")

	// ErrNullReference indicates an absent or out-of-arena block reference.
	ErrNullReference = errors.New("malloc: null block reference")

	// ErrNotLinked indicates an eject of a block that is not in its list.
	ErrNotLinked = errors.New("malloc: block not linked")

	// ErrNotBuddies indicates a coalesce of two blocks that are not a buddy pair.
	ErrNotBuddies = errors.New("malloc: blocks are not buddies")

	// ErrCorrupted is returned by Validate when an invariant does not hold.
	ErrCorrupted = errors.New("malloc: arena corrupted")
)

// Recoverable errors. The allocator state is unchanged when one is returned.
var (
	ErrClosed         = errors.New("malloc: allocator not initialized")
	ErrInvalidConfig  = errors.New("malloc: invalid configuration")
	ErrInvalidLength  = errors.New("malloc: invalid length")
	ErrTooLarge       = errors.New("malloc: request exceeds arena capacity")
	ErrExhausted      = errors.New("malloc: no free block large enough")
	ErrInvalidAddress = errors.New("malloc: address not allocated by this allocator")
)

var structural = []error{
	ErrInvalidFlag,
	ErrBrokenLink,
	ErrDuplicateLink,
	ErrMissingBoundary,
	ErrNullReference,
	ErrNotLinked,
	ErrNotBuddies,
	ErrCorrupted,
}

// IsStructural reports whether err signals a corrupted allocator.
func IsStructural(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range structural {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
