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

// Package malloc implements a Fibonacci buddy allocator over a single arena.
//
// Block sizes are Fibonacci multiples of a base unit, so a block splits into two
// buddies of consecutive Fibonacci classes instead of two equal halves. Every
// block starts with a HeaderSize header; free blocks are kept in address-ordered
// lists per size class. An Allocator is not safe for concurrent use.
package malloc

import (
	"context"
	"io"
	"log/slog"
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/cloudwego/fibmalloc/internal/arena"
)

const (
	// DefaultBaseUnit is the default base block size in bytes.
	DefaultBaseUnit = 128

	// DefaultCapacity is the default arena capacity hint in bytes.
	DefaultCapacity = 52488

	// maxArenaSize keeps every offset and link representable as a uint32 ref.
	maxArenaSize = math.MaxInt32
)

// Allocator is a Fibonacci buddy allocator.
type Allocator struct {
	// arena is the managed memory; nil once closed.
	arena []byte

	// region owns arena and releases it on Close.
	region *arena.Region

	// arenaStart is a cached pointer to the start of the arena,
	// used to turn a slice returned by Alloc back into an offset.
	arenaStart unsafe.Pointer

	// freeLists holds first/last refs for each size class.
	freeLists []uint32

	baseUnit     int
	numClasses   int
	capacityHint int

	// allocated and usedBytes count blocks handed out and their total size.
	allocated int
	usedBytes int

	// err is the first structural error seen; once set every call returns it.
	err error

	log      *slog.Logger
	trace    bool
	validate bool
}

// Option configures an Allocator.
type Option func(o *options)

type options struct {
	logger   *slog.Logger
	source   arena.Source
	validate bool
}

func defaultOptions() *options {
	return &options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		source: arena.Heap,
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMmap backs the arena with an anonymous memory mapping instead of the Go heap.
func WithMmap(enabled bool) Option {
	return func(o *options) {
		if enabled {
			o.source = arena.Mmap
		} else {
			o.source = arena.Heap
		}
	}
}

// WithValidation makes every Allocate and Free check all invariants afterwards.
// It is slow and meant for tests and debugging.
func WithValidation(enabled bool) Option {
	return func(o *options) { o.validate = enabled }
}

// New reserves an arena of the smallest Fibonacci capacity that holds
// capacityHint bytes, in units of baseUnit bytes, and makes it one free block.
func New(baseUnit, capacityHint int, opts ...Option) (*Allocator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if baseUnit < HeaderSize {
		return nil, errors.Wrapf(ErrInvalidConfig, "base unit must be >= header size (%d), got %d", HeaderSize, baseUnit)
	}
	if capacityHint <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "capacity must be positive, got %d", capacityHint)
	}
	top, ok := classFor(baseUnit, capacityHint)
	if !ok || fibs[top] > uint64(maxArenaSize/baseUnit) {
		return nil, errors.Wrapf(ErrInvalidConfig, "capacity %d exceeds maximum arena size %d", capacityHint, maxArenaSize)
	}
	size := int(fibs[top]) * baseUnit

	region, err := arena.Reserve(size, o.source)
	if err != nil {
		return nil, errors.Wrapf(err, "reserve arena of %d bytes", size)
	}
	a := &Allocator{
		region:       region,
		baseUnit:     baseUnit,
		numClasses:   top + 1,
		capacityHint: capacityHint,
		log:          o.logger,
		trace:        o.logger.Enabled(context.Background(), slog.LevelDebug),
		validate:     o.validate,
	}
	a.attach()
	if err := a.format(); err != nil {
		_ = region.Release()
		return nil, err
	}
	a.log.Debug("allocator initialized",
		"base_unit", baseUnit, "capacity_hint", capacityHint,
		"arena_size", size, "classes", a.numClasses, "source", o.source.String())
	return a, nil
}

func (a *Allocator) attach() {
	a.arena = a.region.Bytes()
	a.arenaStart = unsafe.Pointer(&a.arena[0])
	a.freeLists = make([]uint32, 2*a.numClasses)
}

// format turns the whole (zeroed) arena into one free block of the top class.
func (a *Allocator) format() error {
	if err := a.configureWithLinks(0, 0, 0, 1, a.numClasses-1, nilRef, nilRef); err != nil {
		return err
	}
	return a.insert(0)
}

// Allocate reserves a block with room for length bytes and returns the offset
// of its payload inside the arena. On failure it returns 0 and an error.
func (a *Allocator) Allocate(length int) (int, error) {
	if a.arena == nil {
		return 0, ErrClosed
	}
	if a.err != nil {
		return 0, a.err
	}
	if length < 0 {
		return 0, errors.Wrapf(ErrInvalidLength, "length %d", length)
	}
	if length > len(a.arena)-HeaderSize {
		return 0, errors.Wrapf(ErrTooLarge, "length %d, arena %d", length, len(a.arena))
	}
	want, ok := classFor(a.baseUnit, length+HeaderSize)
	if !ok || want >= a.numClasses {
		return 0, errors.Wrapf(ErrTooLarge, "length %d, arena %d", length, len(a.arena))
	}

	found := want
	for found < a.numClasses && a.first(found) == nilRef {
		found++
	}
	if found == a.numClasses {
		return 0, errors.Wrapf(ErrExhausted, "length %d", length)
	}

	// Shrink the left-most block of the found class two classes at a time,
	// keeping the left half, until it is no larger than wanted.
	off := fromRef(a.first(found))
	class := found
	target := fibs[want]
	for fibs[class] > target {
		l, r := class-2, class-1
		if class == 1 {
			l, r = 0, 0
		}
		ok, err := a.split(off, l, r)
		if err != nil {
			return 0, a.fail(err)
		}
		if !ok {
			return 0, a.fail(errors.Wrapf(ErrCorrupted, "split of class %d at offset %d refused", class, off))
		}
		class = l
	}

	// Overshot by one class: the right half of the last split fits exactly.
	block := off
	if fibs[class] != target {
		b, ok := a.findBuddy(off)
		if !ok {
			return 0, a.fail(errors.Wrapf(ErrCorrupted, "right buddy of offset %d missing after split", off))
		}
		block = b
	}
	if err := a.eject(block); err != nil {
		return 0, a.fail(err)
	}
	if err := a.configure(block, a.rightFlag(block), a.lineage(block), 0, a.sizeClass(block)); err != nil {
		return 0, a.fail(err)
	}
	a.allocated++
	a.usedBytes += a.blockSize(want)
	if err := a.check(); err != nil {
		return 0, err
	}
	return block + HeaderSize, nil
}

// Alloc allocates a block of at least size bytes and returns it as a slice
// of the arena with len == size. It returns nil on failure.
func (a *Allocator) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	p, err := a.Allocate(size)
	if err != nil {
		return nil
	}
	end := p - HeaderSize + a.blockSize(a.sizeClass(p-HeaderSize))
	return a.arena[p : p+size : end]
}

// FreeAt releases the block whose payload starts at offset p, merging it with
// free buddies, and returns the size in bytes of the released block.
// Offsets not returned by Allocate are rejected with 0 and ErrInvalidAddress
// without touching any state.
func (a *Allocator) FreeAt(p int) (int, error) {
	if a.arena == nil {
		return 0, ErrClosed
	}
	if a.err != nil {
		return 0, a.err
	}
	off := p - HeaderSize
	if p <= 0 || p > len(a.arena) || off < 0 {
		return 0, a.reject(p, "outside arena")
	}
	if !a.isBlock(off) {
		return 0, a.reject(p, "no block header")
	}
	if a.isFree(off) {
		return 0, a.reject(p, "block already free")
	}

	class := a.sizeClass(off)
	size := a.blockSize(class)
	if err := a.configure(off, a.rightFlag(off), a.lineage(off), 1, class); err != nil {
		return 0, a.fail(err)
	}
	if err := a.insert(off); err != nil {
		return 0, a.fail(err)
	}
	for {
		b, ok := a.findBuddy(off)
		if !ok || !a.isFree(b) {
			break
		}
		left, right := off, b
		if !a.isRightBuddy(b) {
			left, right = b, off
		}
		merged, err := a.coalesce(left, right)
		if err != nil {
			return 0, a.fail(err)
		}
		off = merged
	}
	a.allocated--
	a.usedBytes -= size
	if err := a.check(); err != nil {
		return 0, err
	}
	return size, nil
}

// Free releases a slice returned by Alloc and returns the size of the released
// block, or 0 if b was not allocated by a.
//
// IMPORTANT: b must be the original slice returned by Alloc, or a reslice
// starting at the same element. Reslicing past the start loses the header.
func (a *Allocator) Free(b []byte) int {
	if cap(b) == 0 || a.arena == nil {
		return 0
	}
	// Use the slice header directly so that zero-length slices work.
	dataPtr := *(*uintptr)(unsafe.Pointer(&b))
	start := uintptr(a.arenaStart)
	if dataPtr < start || dataPtr >= start+uintptr(len(a.arena)) {
		a.log.Warn("free rejected", "reason", "slice not in arena")
		return 0
	}
	n, _ := a.FreeAt(int(dataPtr - start))
	return n
}

// Close releases the arena. The allocator is unusable afterwards; Allocate
// returns ErrClosed. Close is idempotent.
func (a *Allocator) Close() error {
	if a.arena == nil {
		return nil
	}
	err := a.region.Release()
	a.arena = nil
	a.arenaStart = nil
	a.region = nil
	a.freeLists = nil
	a.baseUnit = 0
	a.numClasses = 0
	a.capacityHint = 0
	a.allocated = 0
	a.usedBytes = 0
	a.err = nil
	a.log.Debug("allocator released")
	if err != nil {
		return errors.Wrap(err, "release arena")
	}
	return nil
}

// Reset frees every block at once, returning the allocator to its state right
// after New. It also clears a recorded structural error.
func (a *Allocator) Reset() error {
	if a.arena == nil {
		return ErrClosed
	}
	clear(a.arena)
	clear(a.freeLists)
	a.allocated = 0
	a.usedBytes = 0
	a.err = nil
	return a.format()
}

// Err returns the structural error that disabled the allocator, if any.
func (a *Allocator) Err() error { return a.err }

// CapacityHint returns the capacity requested from New, or 0 once closed.
func (a *Allocator) CapacityHint() int { return a.capacityHint }

// Size returns the arena size in bytes.
func (a *Allocator) Size() int { return len(a.arena) }

// BaseUnit returns the base block size in bytes.
func (a *Allocator) BaseUnit() int { return a.baseUnit }

// NumClasses returns the number of size classes, the largest being the whole arena.
func (a *Allocator) NumClasses() int { return a.numClasses }

// BlockSize returns the size in bytes of a block of class n, or 0 if n is not
// a class of this allocator.
func (a *Allocator) BlockSize(n int) int {
	if n < 0 || n >= a.numClasses {
		return 0
	}
	return a.blockSize(n)
}

// check runs Validate when validation is enabled.
func (a *Allocator) check() error {
	if !a.validate {
		return nil
	}
	if err := a.Validate(); err != nil {
		return a.fail(err)
	}
	return nil
}

// fail records err if it is structural and returns it.
func (a *Allocator) fail(err error) error {
	if IsStructural(err) && a.err == nil {
		a.err = err
		a.log.Error("allocator corrupted", "error", err)
	}
	return err
}

func (a *Allocator) reject(p int, reason string) error {
	a.log.Warn("free rejected", "offset", p, "reason", reason)
	return errors.Wrapf(ErrInvalidAddress, "offset %d: %s", p, reason)
}
