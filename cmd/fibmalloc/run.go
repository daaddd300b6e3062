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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/fibmalloc/internal/workload"
	"github.com/cloudwego/fibmalloc/malloc"
)

type report struct {
	id    int
	hint  int
	res   workload.Result
	stats malloc.Stats
	err   error
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	log := newLogger(cmd.ErrOrStderr(), opts.verbose)
	cfg := &workload.Config{N: opts.n, M: opts.m, MaxAlloc: opts.maxAlloc, Logger: log}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Each run owns its allocator; allocators are never shared between goroutines.
	reports := make([]report, opts.parallel)
	var wg sync.WaitGroup
	for i := range reports {
		i := i
		wg.Add(1)
		gopool.CtxGo(ctx, func() {
			defer wg.Done()
			reports[i] = runArena(cmd, i, opts, cfg, log.With("arena", i))
		})
	}
	wg.Wait()

	out := cmd.OutOrStdout()
	var errs error
	for _, r := range reports {
		printReport(out, r, cfg)
		if r.err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(r.err, "arena %d", r.id))
		}
	}
	return errs
}

func runArena(cmd *cobra.Command, id int, opts *options, cfg *workload.Config, log *slog.Logger) (r report) {
	r.id = id
	a, err := malloc.New(opts.blockSize, opts.memSize,
		malloc.WithLogger(log),
		malloc.WithMmap(opts.mmap),
		malloc.WithValidation(opts.validate))
	if err != nil {
		r.err = err
		return r
	}
	defer func() {
		r.err = errors.CombineErrors(r.err, a.Close())
	}()

	r.hint = a.CapacityHint()
	r.res, r.err = workload.Run(cmd.Context(), a, cfg)
	r.stats = a.Stats()
	if r.err == nil {
		r.err = a.Err()
	}
	return r
}

func printReport(w io.Writer, r report, cfg *workload.Config) {
	if r.hint == 0 {
		fmt.Fprintf(w, "arena %d: init failed: %v\n", r.id, r.err)
		return
	}
	fmt.Fprintf(w, "arena %d: A(%d, %d) = %d\n", r.id, cfg.N, cfg.M, r.res.Value)
	fmt.Fprintf(w, "  calls %d, allocated %d, failed %d, freed %d bytes, max depth %d, %s\n",
		r.res.Calls, r.res.Allocs, r.res.Failed, r.res.Freed, r.res.MaxDepth, r.res.Elapsed)
	fmt.Fprintf(w, "  arena %d bytes (hint %d), base %d, %d classes, %d bytes free, %d blocks in use\n",
		r.stats.ArenaSize, r.hint, r.stats.BaseUnit, r.stats.NumClasses, r.stats.FreeBytes, r.stats.Allocated)
}
