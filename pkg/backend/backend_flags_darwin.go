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

//go:build darwin

package backend

import "golang.org/x/sys/unix"

const mapNoReserveFlag = unix.MAP_NORESERVE

// mapPopulateFlag: Darwin has no MAP_POPULATE equivalent; FlagPopulate is
// a documented no-op here (not in spec.md's Windows/Darwin no-op table,
// but there is no cheap way to prefault at map time on this kernel other
// than touching every page, which this module does not do implicitly).
const mapPopulateFlag = 0

// mapJITFlag is Darwin's hardened-runtime opt-in for a mapping that is
// simultaneously writable and executable (spec.md §4.2's commit_jit_rwx).
// Without it, a PROT_WRITE|PROT_EXEC mmap is rejected by the kernel on
// recent macOS even when the calling process holds the JIT entitlement.
const mapJITFlag = unix.MAP_JIT

// adviseExtra: Darwin supports neither transparent huge pages nor a
// per-mapping core-dump exclusion flag; both are documented no-ops.
func adviseExtra(advice Advice) (int, bool) {
	return 0, false
}
