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

//go:build linux

package backend

import "golang.org/x/sys/unix"

// mapNoReserveFlag avoids committing swap backing for an emulated
// reservation (spec.md §4.3's "must not consume commit charge where a
// kernel option permits avoiding it").
const mapNoReserveFlag = unix.MAP_NORESERVE

// mapPopulateFlag prefaults pages at map time. Linux-only; other unix
// backends in this module treat FlagPopulate as a no-op.
const mapPopulateFlag = unix.MAP_POPULATE

// mapJITFlag is unnecessary on Linux: PROT_WRITE|PROT_EXEC is permitted by
// a vanilla mmap(2) without an extra flag, unlike Darwin's hardened
// runtime.
const mapJITFlag = 0

// adviseExtra handles the Linux-only advice kinds: transparent huge pages
// and core-dump exclusion.
func adviseExtra(advice Advice) (int, bool) {
	switch advice {
	case AdviceTransparentHugePages:
		return unix.MADV_HUGEPAGE, true
	case AdviceNoCoreDump:
		return unix.MADV_DONTDUMP, true
	default:
		return 0, false
	}
}
