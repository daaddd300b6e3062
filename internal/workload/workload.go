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

// Package workload drives an allocator through the Ackermann function: every
// call allocates a block of random size, fills it, recurses, checks that the
// block was not overwritten and frees it.
package workload

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/cockroachdb/errors"
)

const (
	// MaxN and MaxM bound the Ackermann arguments; beyond them the recursion
	// takes far too long to be a useful test.
	MaxN = 3
	MaxM = 8
)

// ErrPayloadCorrupted means a block's contents changed while it was allocated.
var ErrPayloadCorrupted = errors.New("workload: payload corrupted")

// Allocator is what the workload needs from an allocator.
type Allocator interface {
	// Alloc returns a block of len size, or nil if none is available.
	Alloc(size int) []byte
	// Free releases a block returned by Alloc and returns the released size.
	Free(b []byte) int
}

// Config holds the parameters of a run.
type Config struct {
	N, M int

	// MaxAlloc is the upper bound of the random block size of each call.
	MaxAlloc int

	Logger *slog.Logger
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		N:        2,
		M:        3,
		MaxAlloc: 512,
	}
}

// Validate checks that the run can be performed.
func (c *Config) Validate() error {
	if c.N < 0 || c.N > MaxN {
		return errors.Newf("workload: n must be in [0, %d], got %d", MaxN, c.N)
	}
	if c.M < 0 || c.M > MaxM {
		return errors.Newf("workload: m must be in [0, %d], got %d", MaxM, c.M)
	}
	if c.MaxAlloc <= 0 {
		return errors.Newf("workload: max alloc must be positive, got %d", c.MaxAlloc)
	}
	return nil
}

// Result summarizes a run.
type Result struct {
	Value    int // A(n, m)
	Calls    int
	Allocs   int // calls that got a block
	Failed   int // calls whose allocation failed
	Freed    int // bytes reported by Free
	MaxDepth int
	Elapsed  time.Duration
}

type runner struct {
	ctx context.Context
	a   Allocator
	cfg *Config
	res Result
}

// Run computes A(cfg.N, cfg.M) against a. Allocation failures are counted,
// not returned; a corrupted payload or a cancelled ctx stops the run.
func Run(ctx context.Context, a Allocator, cfg *Config) (Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &runner{ctx: ctx, a: a, cfg: cfg}
	start := time.Now()
	v, err := r.ackermann(cfg.N, cfg.M, 1)
	r.res.Elapsed = time.Since(start)
	r.res.Value = v
	if err != nil {
		log.Error("workload aborted", "n", cfg.N, "m", cfg.M, "calls", r.res.Calls, "error", err)
		return r.res, err
	}
	log.Debug("workload finished",
		"n", cfg.N, "m", cfg.M, "value", v, "calls", r.res.Calls,
		"allocs", r.res.Allocs, "failed", r.res.Failed, "elapsed", r.res.Elapsed)
	return r.res, nil
}

func (r *runner) ackermann(n, m, depth int) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	r.res.Calls++
	if depth > r.res.MaxDepth {
		r.res.MaxDepth = depth
	}
	call := r.res.Calls

	size := 1 + int(fastrand.Uint32n(uint32(r.cfg.MaxAlloc)))
	block := r.a.Alloc(size)
	var want []byte
	if block == nil {
		r.res.Failed++
	} else {
		r.res.Allocs++
		want = mcache.Malloc(size)
		fill := byte(fastrand.Uint32())
		for i := range want {
			want[i] = fill
		}
		copy(block, want)
	}

	var v int
	var err error
	switch {
	case n == 0:
		v = m + 1
	case m == 0:
		v, err = r.ackermann(n-1, 1, depth+1)
	default:
		v, err = r.ackermann(n, m-1, depth+1)
		if err == nil {
			v, err = r.ackermann(n-1, v, depth+1)
		}
	}

	if block != nil {
		if err == nil && !bytes.Equal(block, want) {
			err = errors.Wrapf(ErrPayloadCorrupted, "call %d, %d bytes", call, size)
		}
		mcache.Free(want)
		r.res.Freed += r.a.Free(block)
	}
	return v, err
}
