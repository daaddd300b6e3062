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

import "github.com/bytedance/gopkg/lang/dirtmake"

func reserveHeap(size int) *Region {
	// dirtmake skips the runtime's zeroing; the region is cleared here
	// so that every byte of a fresh arena reads as zero.
	buf := dirtmake.Bytes(size, size)
	clear(buf)
	return &Region{buf: buf, src: Heap}
}
