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

	"github.com/stretchr/testify/assert"
)

func TestFib(t *testing.T) {
	assert.Equal(t, uint64(1), Fib(0))
	assert.Equal(t, uint64(2), Fib(1))
	for n := 2; n <= MaxClass; n++ {
		assert.Equal(t, Fib(n-1)+Fib(n-2), Fib(n), "n=%d", n)
	}
	assert.Equal(t, uint64(610), Fib(13))
	assert.Equal(t, uint64(0), Fib(-1))
	assert.Equal(t, uint64(0), Fib(MaxClass+1))
	assert.Less(t, Fib(MaxClass), uint64(1)<<63)
}

func TestClassFor(t *testing.T) {
	tests := []struct {
		base   int
		length int
		want   int
	}{
		{128, 0, 0},
		{128, 1, 0},
		{128, 128, 0},
		{128, 129, 1},
		{128, 256, 1},
		{128, 257, 2},
		{128, 116, 0},
		{128, 52488, 13}, // 411 units -> Fib(13) = 610
		{16, 16, 0},
		{16, 48, 2},
		{16, 49, 3},
	}
	for _, tt := range tests {
		got, ok := classFor(tt.base, tt.length)
		assert.True(t, ok, "base=%d length=%d", tt.base, tt.length)
		assert.Equal(t, tt.want, got, "base=%d length=%d", tt.base, tt.length)
	}
}
