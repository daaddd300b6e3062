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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	a := newTestAllocator(t, 128, 52488)
	off := 3 * 128
	for right := uint32(0); right <= 1; right++ {
		for lineage := uint32(0); lineage <= 1; lineage++ {
			for free := uint32(0); free <= 1; free++ {
				for _, class := range []int{0, 1, 7, 12} {
					require.NoError(t, a.configure(off, right, lineage, free, class))
					assert.True(t, a.isValid(off))
					assert.Equal(t, right == 1, a.isRightBuddy(off))
					assert.Equal(t, right, a.rightFlag(off))
					assert.Equal(t, lineage, a.lineage(off))
					assert.Equal(t, free == 1, a.isFree(off))
					assert.Equal(t, class, a.sizeClass(off))
				}
			}
		}
	}
	a.destroy(off)
	assert.False(t, a.isValid(off))
	assert.Equal(t, make([]byte, HeaderSize), a.arena[off:off+HeaderSize])
}

func TestHeaderLinks(t *testing.T) {
	a := newTestAllocator(t, 128, 52488)
	off := 5 * 128
	require.NoError(t, a.configureWithLinks(off, 1, 0, 1, 2, toRef(0), toRef(1024)))
	assert.Equal(t, 0, fromRef(a.next(off)))
	assert.Equal(t, 1024, fromRef(a.prev(off)))
	assert.Equal(t, 2, a.sizeClass(off))

	// configure leaves links alone
	require.NoError(t, a.configure(off, 0, 0, 0, 3))
	assert.Equal(t, 0, fromRef(a.next(off)))
	assert.Equal(t, 1024, fromRef(a.prev(off)))
}

func TestHeaderInvalidFlag(t *testing.T) {
	a := newTestAllocator(t, 128, 52488)
	off := 128
	before := a.Digest()
	tests := []struct {
		name                 string
		right, lineage, free uint32
	}{
		{"right", 2, 0, 0},
		{"lineage", 0, 3, 1},
		{"free", 1, 1, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.configure(off, tt.right, tt.lineage, tt.free, 1)
			assert.True(t, errors.Is(err, ErrInvalidFlag))
			assert.True(t, IsStructural(err))
		})
	}
	assert.Equal(t, before, a.Digest())
}

func TestHeaderValidity(t *testing.T) {
	a := newTestAllocator(t, 128, 52488)
	assert.True(t, a.isValid(0))
	assert.False(t, a.isValid(-1))
	assert.False(t, a.isValid(128)) // zeroed memory
	assert.False(t, a.isValid(len(a.arena)-HeaderSize/2))
	assert.False(t, a.isValid(len(a.arena)))

	// A near miss on the magic is not a header.
	le.PutUint32(a.arena[256:], (magic^1)<<magicShift|freeBit)
	assert.False(t, a.isValid(256))

	// A valid header whose class does not fit is not a block.
	require.NoError(t, a.configure(len(a.arena)-128, 0, 0, 1, 3))
	assert.True(t, a.isValid(len(a.arena)-128))
	assert.False(t, a.isBlock(len(a.arena)-128))
}
