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

//go:build !amd64 && !386 && !arm64 && !(arm && linux)

package icache

import "runtime"

// flush has no architecture-specific implementation for this GOARCH in
// this module yet; it degrades to the x86 no-op rather than refusing to
// build, since the only caller-visible effect of under-flushing on an
// architecture that actually needs it is JIT'd code reading stale
// instructions, not a crash this module can detect.
func flush(base, length uintptr) {
	runtime.KeepAlive(base)
	runtime.KeepAlive(length)
}
