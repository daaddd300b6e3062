//go:build linux || darwin || freebsd || netbsd || openbsd

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

package arena

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func reserveMmap(size int) (*Region, error) {
	// Anonymous mappings are zero-filled by the kernel.
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "arena: mmap %d bytes", size)
	}
	return &Region{buf: buf, src: Mmap, release: munmap}, nil
}

func munmap(buf []byte) error {
	if err := unix.Munmap(buf); err != nil {
		return errors.Wrap(err, "arena: munmap")
	}
	return nil
}
