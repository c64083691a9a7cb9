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

//go:build amd64 || 386

package icache

import "runtime"

// flush is a no-op on x86/x86_64: the architecture guarantees coherent
// instruction and data caches, so a store through the data side is
// already visible to the next instruction fetch without an explicit
// invalidation. runtime.KeepAlive only prevents the compiler from
// treating the (otherwise unused) range as dead.
func flush(base, length uintptr) {
	runtime.KeepAlive(base)
	runtime.KeepAlive(length)
}
