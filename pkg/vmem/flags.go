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

package vmem

// Flags is a fixed bitfield over the flag enumeration in spec.md §6. A
// bitfield (rather than a dynamic set) keeps the backend's flag handling a
// cheap, exhaustive switch.
type Flags uint32

const (
	// FlagCopyOnWrite selects Private sharing for file-backed kinds.
	FlagCopyOnWrite Flags = 1 << iota
	// FlagShared selects Shared sharing.
	FlagShared
	// FlagStack marks the region as a stack. It is kept on the Mapping
	// and in backend.Request.Stack; no backend passes a stack hint to the
	// OS.
	FlagStack
	// FlagPopulate prefaults pages at map time. No-op on Windows.
	FlagPopulate
	// FlagNoReserve avoids reserving swap backing for the mapping.
	// No-op on Windows.
	FlagNoReserve
	// FlagHugePages makes validation require an Options.PageSize larger
	// than the base page size and listed in the host's supported page
	// sizes. The backends do not pass that page size to the OS, so the
	// mapping itself is made with the base page size.
	FlagHugePages
	// FlagTransparentHugePages is accepted and kept on the Mapping, but no
	// commit path applies it; Mapping.Advise with
	// backend.AdviceTransparentHugePages conveys the hint (a no-op on
	// Windows and Darwin).
	FlagTransparentHugePages
	// FlagLocked locks pages into physical memory on commit.
	FlagLocked
	// FlagNoCoreDump is accepted and kept on the Mapping, but no commit
	// path applies it; Mapping.Advise with backend.AdviceNoCoreDump
	// excludes the region from core dumps (a no-op outside Linux).
	FlagNoCoreDump
	// FlagJIT opts in to simultaneous write-and-execute mappings
	// (commit_jit_rwx). Without it, ProtWrite|ProtExecute is rejected at
	// validation time.
	FlagJIT
)

// Has reports whether all bits of want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// noopOn reports whether flag f is a documented no-op on the current
// GOOS, per the table in spec.md §6. It never causes validation to fail —
// no-op flags are accepted silently, matching spec.md's "documented as
// no-ops rather than refused."
func (f Flags) noopOn(goos string) bool {
	switch goos {
	case "windows":
		return f.Has(FlagStack) || f.Has(FlagPopulate) || f.Has(FlagNoReserve) ||
			f.Has(FlagTransparentHugePages) || f.Has(FlagNoCoreDump)
	case "darwin":
		return f.Has(FlagTransparentHugePages)
	default:
		return false
	}
}
