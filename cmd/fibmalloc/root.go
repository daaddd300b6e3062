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
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/fibmalloc/internal/workload"
	"github.com/cloudwego/fibmalloc/malloc"
)

type options struct {
	blockSize int
	memSize   int
	n, m      int
	maxAlloc  int
	parallel  int
	mmap      bool
	validate  bool
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	def := workload.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "fibmalloc",
		Short: "Stress a Fibonacci buddy allocator with the Ackermann function",
		Long: `fibmalloc reserves an arena sized to the smallest Fibonacci multiple of the
base block size that covers the requested memory size, then computes A(n, m)
while allocating and freeing a randomly sized block in every recursive call.

Example:
  fibmalloc
  fibmalloc -b 64 -s 1048576 --n 3 --m 4
  fibmalloc --parallel 4 --validate -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.check(); err != nil {
				return err
			}
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.blockSize, "block-size", "b", malloc.DefaultBaseUnit, "Base block size in bytes")
	f.IntVarP(&opts.memSize, "mem-size", "s", malloc.DefaultCapacity, "Total memory size hint in bytes")
	f.IntVar(&opts.n, "n", def.N, "First Ackermann argument")
	f.IntVar(&opts.m, "m", def.M, "Second Ackermann argument")
	f.IntVar(&opts.maxAlloc, "max-alloc", def.MaxAlloc, "Largest block requested per call, in bytes")
	f.IntVarP(&opts.parallel, "parallel", "p", 1, "Number of independent arenas to run concurrently")
	f.BoolVar(&opts.mmap, "mmap", false, "Back arenas with anonymous mmap instead of the Go heap")
	f.BoolVar(&opts.validate, "validate", false, "Check allocator invariants after every operation")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

// check rejects values that would otherwise reach the allocator's arithmetic.
func (o *options) check() error {
	if o.blockSize < malloc.HeaderSize {
		return errors.Newf("block size must be at least %d bytes, got %d", malloc.HeaderSize, o.blockSize)
	}
	if o.memSize <= 0 {
		return errors.Newf("memory size must be positive, got %d", o.memSize)
	}
	if o.parallel <= 0 {
		return errors.Newf("parallel must be positive, got %d", o.parallel)
	}
	return nil
}
