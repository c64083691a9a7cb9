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

//go:build arm && linux

package icache

import "golang.org/x/sys/unix"

// flush issues the Linux arm cacheflush(2) pseudo-syscall, which asks the
// kernel to perform the DC/IC maintenance this module's arm64 path does
// directly in userspace (32-bit ARM has no equivalent unprivileged
// instruction pair usable without knowing the cache topology, so the
// kernel does it instead).
func flush(base, length uintptr) {
	const flushScope = 0 // flush both I and D caches
	unix.Syscall(unix.SYS_CACHEFLUSH, base, base+length, flushScope)
}
