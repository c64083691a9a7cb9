// Copyright 2024 The vmem Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build arm64

package icache

// cacheLineSize is the granularity DC CVAU/IC IVAU must be issued at.
// AArch64 exposes the real value via CTR_EL0, but reading that register
// from Go would need its own asm stub; 64 bytes covers every shipping
// Apple Silicon and server-class ARM64 part, and issuing the instruction
// pair on a finer stride than required only costs a few extra loop
// iterations, never correctness.
const cacheLineSize = 64

// flush invalidates the instruction cache over [base, base+length) using
// the DC CVAU (clean data cache by VA to point of unification) / IC IVAU
// (invalidate instruction cache by VA to point of unification) pair,
// matching the sequence ARM's Application Binary Interface documents for
// "data written, about to execute" (the same problem __builtin___clear_cache
// solves, without requiring cgo).
func flush(base, length uintptr) {
	if length == 0 {
		return
	}
	start := base &^ (cacheLineSize - 1)
	end := (base + length + cacheLineSize - 1) &^ (cacheLineSize - 1)
	flushRange(start, end)
}

// flushRange is implemented in icache_arm64.s.
func flushRange(start, end uintptr)
