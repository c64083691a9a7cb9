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

package icache

import (
	"testing"
	"unsafe"
)

// TestFlushDoesNotPanic is necessarily a smoke test: flushing a real
// range requires an executable mapping, which is pkg/vmem's end-to-end
// JIT scenario (spec.md §8). This only checks that flushing a 64-byte
// stack range, and a zero-length range at the same address, never panics
// on any GOARCH this module builds for.
func TestFlushDoesNotPanic(t *testing.T) {
	var x [64]byte
	base := uintptr(unsafe.Pointer(&x[0]))
	Flush(base, uintptr(len(x)))
	Flush(base, 0)
}
