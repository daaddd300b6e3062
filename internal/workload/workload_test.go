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

package workload

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/fibmalloc/malloc"
)

// heapAllocator hands out plain heap slices.
type heapAllocator struct{ live int }

func (h *heapAllocator) Alloc(size int) []byte {
	h.live++
	return make([]byte, size)
}

func (h *heapAllocator) Free(b []byte) int {
	h.live--
	return cap(b)
}

// sharedAllocator returns the same memory every time, so nested blocks clobber each other.
type sharedAllocator struct{ buf []byte }

func (s *sharedAllocator) Alloc(size int) []byte { return s.buf[:size] }
func (s *sharedAllocator) Free(b []byte) int     { return cap(b) }

// nilAllocator never has memory.
type nilAllocator struct{}

func (nilAllocator) Alloc(int) []byte { return nil }
func (nilAllocator) Free([]byte) int  { return 0 }

func TestAckermannValues(t *testing.T) {
	tests := []struct {
		n, m int
		want int
	}{
		{0, 0, 1},
		{0, 5, 6},
		{1, 0, 2},
		{1, 2, 4},
		{2, 3, 9},
		{3, 3, 61},
	}
	for _, tt := range tests {
		h := &heapAllocator{}
		res, err := Run(context.Background(), h, &Config{N: tt.n, M: tt.m, MaxAlloc: 64})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Value, "A(%d, %d)", tt.n, tt.m)
		assert.Equal(t, res.Calls, res.Allocs)
		assert.Equal(t, 0, res.Failed)
		assert.Equal(t, 0, h.live)
		assert.Greater(t, res.MaxDepth, 0)
	}
}

func TestRunWithFibAllocator(t *testing.T) {
	a, err := malloc.New(malloc.DefaultBaseUnit, malloc.DefaultCapacity, malloc.WithValidation(true))
	require.NoError(t, err)
	defer a.Close()
	initial := a.Available()

	res, err := Run(context.Background(), a, &Config{N: 2, M: 3, MaxAlloc: 2000})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Value)
	assert.Equal(t, res.Calls, res.Allocs+res.Failed)
	assert.Greater(t, res.Allocs, 0)
	assert.Greater(t, res.Freed, 0)

	assert.Equal(t, initial, a.Available())
	assert.NoError(t, a.Validate())
	assert.Equal(t, 0, a.Stats().Allocated)
}

func TestRunExhaustedArena(t *testing.T) {
	// A tiny arena runs out quickly; failures are counted, not fatal.
	a, err := malloc.New(64, 256)
	require.NoError(t, err)
	defer a.Close()

	res, err := Run(context.Background(), a, &Config{N: 2, M: 2, MaxAlloc: 100})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Value)
	assert.Greater(t, res.Failed, 0)
	assert.Equal(t, res.Calls, res.Allocs+res.Failed)

	res, err = Run(context.Background(), nilAllocator{}, &Config{N: 1, M: 1, MaxAlloc: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Value)
	assert.Equal(t, res.Calls, res.Failed)
}

func TestRunDetectsCorruption(t *testing.T) {
	s := &sharedAllocator{buf: make([]byte, 1024)}
	_, err := Run(context.Background(), s, &Config{N: 2, M: 2, MaxAlloc: 512})
	assert.True(t, errors.Is(err, ErrPayloadCorrupted), "%v", err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, &heapAllocator{}, DefaultConfig())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, res.Calls)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"max", Config{N: MaxN, M: MaxM, MaxAlloc: 1}, false},
		{"negative_n", Config{N: -1, M: 1, MaxAlloc: 1}, true},
		{"large_n", Config{N: MaxN + 1, M: 1, MaxAlloc: 1}, true},
		{"large_m", Config{N: 1, M: MaxM + 1, MaxAlloc: 1}, true},
		{"zero_alloc", Config{N: 1, M: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	_, err := Run(context.Background(), &heapAllocator{}, &Config{N: 9})
	assert.Error(t, err)
}
