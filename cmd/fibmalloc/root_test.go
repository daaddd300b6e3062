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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootDefaults(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "arena 0: A(2, 3) = 9")
	assert.Contains(t, out, "arena 78080 bytes (hint 52488), base 128, 14 classes, 78080 bytes free, 0 blocks in use")
}

func TestRootFlags(t *testing.T) {
	out, err := execute(t, "-b", "64", "-s", "100000", "--n", "1", "--m", "2", "--max-alloc", "300", "--parallel", "3", "--validate")
	require.NoError(t, err)
	for _, want := range []string{"arena 0: A(1, 2) = 4", "arena 1: A(1, 2) = 4", "arena 2: A(1, 2) = 4"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "base 64")
}

func TestRootInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero_block", []string{"-b", "0"}},
		{"small_block", []string{"-b", "8"}},
		{"negative_mem", []string{"-s", "-5"}},
		{"not_a_number", []string{"-s", "lots"}},
		{"bad_n", []string{"--n", "7"}},
		{"bad_parallel", []string{"-p", "0"}},
		{"extra_arg", []string{"foo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			assert.Error(t, err)
			assert.NotContains(t, out, "A(")
		})
	}
}
