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

// Package arena reserves the contiguous memory regions managed by the allocators
// in this module. It is the only place raw memory is acquired and released.
package arena

import (
	"github.com/cockroachdb/errors"
)

// Source selects where a Region's memory comes from.
type Source int

const (
	// Heap backs the region with a Go heap slice.
	Heap Source = iota
	// Mmap backs the region with an anonymous private mapping, outside the Go heap.
	Mmap
)

func (s Source) String() string {
	switch s {
	case Heap:
		return "heap"
	case Mmap:
		return "mmap"
	}
	return "unknown"
}

// ErrUnsupported is returned when a Source is not available on this platform.
var ErrUnsupported = errors.New("arena: source not supported on this platform")

// Region is a reserved, zeroed, fixed-size byte range.
type Region struct {
	buf     []byte
	src     Source
	release func([]byte) error
}

// Reserve returns a zeroed region of exactly size bytes.
func Reserve(size int, src Source) (*Region, error) {
	if size <= 0 {
		return nil, errors.Newf("arena: size must be positive, got %d", size)
	}
	switch src {
	case Heap:
		return reserveHeap(size), nil
	case Mmap:
		return reserveMmap(size)
	}
	return nil, errors.Newf("arena: unknown source %d", int(src))
}

// Bytes returns the region's memory, or nil once released.
func (r *Region) Bytes() []byte { return r.buf }

// Len returns the size of the region in bytes.
func (r *Region) Len() int { return len(r.buf) }

// Source returns where the region's memory came from.
func (r *Region) Source() Source { return r.src }

// Release gives the memory back. It is safe to call more than once.
func (r *Region) Release() error {
	if r == nil || r.buf == nil {
		return nil
	}
	buf := r.buf
	r.buf = nil
	if r.release == nil {
		return nil
	}
	return r.release(buf)
}
