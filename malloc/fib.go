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

// MaxClass is the largest size class whose Fibonacci value fits in an int64.
const MaxClass = 90

// fibs[n] is Fib(n).
var fibs [MaxClass + 1]uint64

func init() {
	fibs[0], fibs[1] = 1, 2
	for n := 2; n <= MaxClass; n++ {
		fibs[n] = fibs[n-1] + fibs[n-2]
	}
}

// Fib returns the number of base units in a block of size class n:
// Fib(0)=1, Fib(1)=2, Fib(n)=Fib(n-1)+Fib(n-2).
// It returns 0 when n is negative or greater than MaxClass.
func Fib(n int) uint64 {
	if n < 0 || n > MaxClass {
		return 0
	}
	return fibs[n]
}

// classFor returns the smallest class n with Fib(n)*baseUnit >= length.
// ok is false if no class up to MaxClass is large enough.
func classFor(baseUnit, length int) (n int, ok bool) {
	if length <= baseUnit {
		return 0, true
	}
	units := uint64(length / baseUnit)
	if length%baseUnit != 0 {
		units++
	}
	for n = 1; n <= MaxClass; n++ {
		if fibs[n] >= units {
			return n, true
		}
	}
	return 0, false
}
