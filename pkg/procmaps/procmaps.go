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

// Package procmaps iterates the calling process's virtual memory regions
// (spec.md §4.6). It is lazy in the sense that the OS-side walk only
// happens once, at New(); the ordering and query logic over the resulting
// snapshot is shared across platforms, only the snapshot's source varies
// (/proc/self/maps on Linux, VirtualQuery on Windows, a mach_vm_region
// walk on Darwin that reports top-level regions and does not descend into
// submaps).
package procmaps

import "sort"

// Protection mirrors vmem.Protection's bit layout without importing
// pkg/vmem: an AreaDescriptor is an immutable observation, not a handle,
// and has no need of the mapping lifecycle machinery that package carries.
type Protection uint8

const (
	ProtNone    Protection = 0
	ProtRead    Protection = 1 << 0
	ProtWrite   Protection = 1 << 1
	ProtExecute Protection = 1 << 2
)

// Has reports whether all bits of want are set in p.
func (p Protection) Has(want Protection) bool { return p&want == want }

func (p Protection) String() string {
	b := [3]byte{'-', '-', '-'}
	if p.Has(ProtRead) {
		b[0] = 'r'
	}
	if p.Has(ProtWrite) {
		b[1] = 'w'
	}
	if p.Has(ProtExecute) {
		b[2] = 'x'
	}
	return string(b[:])
}

// Sharing reports whether a region is privately or shared-mapped.
type Sharing uint8

const (
	Private Sharing = iota
	Shared
)

func (s Sharing) String() string {
	if s == Shared {
		return "shared"
	}
	return "private"
}

// AreaDescriptor is an immutable snapshot of one observed VM region.
// Descriptors confer no rights; they are not handles (spec.md §3).
type AreaDescriptor struct {
	Base       uintptr
	Length     uintptr
	Protection Protection
	Sharing    Sharing
	Path       string // empty for anonymous regions
}

func (d AreaDescriptor) end() uintptr { return d.Base + d.Length }

// contains reports whether addr falls within [Base, Base+Length).
func (d AreaDescriptor) contains(addr uintptr) bool {
	return addr >= d.Base && addr < d.end()
}

// Areas is a single-pass, restartable-only-by-New walk over the calling
// process's committed regions, ordered ascending by Base. Adjacent
// regions with identical protection and kind are reported verbatim, not
// coalesced (spec.md §4.6) — the walk reflects the kernel's own view.
type Areas struct {
	regions []AreaDescriptor
	pos     int
}

// New takes a fresh snapshot of the process's memory map. The snapshot
// reflects the map at the moment New is called; it does not track
// subsequent changes. Call New again to observe a new state.
func New() (*Areas, error) {
	regions, err := snapshot()
	if err != nil {
		return nil, err
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Base < regions[j].Base })
	return &Areas{regions: regions}, nil
}

// Next returns the next descriptor in ascending-base order, or ok=false
// once the walk is exhausted.
func (a *Areas) Next() (AreaDescriptor, bool) {
	if a.pos >= len(a.regions) {
		return AreaDescriptor{}, false
	}
	d := a.regions[a.pos]
	a.pos++
	return d, true
}

// All returns every descriptor in the snapshot, ascending by Base.
func (a *Areas) All() []AreaDescriptor {
	out := make([]AreaDescriptor, len(a.regions))
	copy(out, a.regions)
	return out
}

// Query returns the descriptor whose range contains address, if any.
func (a *Areas) Query(address uintptr) (AreaDescriptor, bool) {
	i := sort.Search(len(a.regions), func(i int) bool { return a.regions[i].end() > address })
	if i < len(a.regions) && a.regions[i].contains(address) {
		return a.regions[i], true
	}
	return AreaDescriptor{}, false
}

// QueryRange returns every descriptor intersecting [base, base+length),
// ordered ascending by Base.
func (a *Areas) QueryRange(base, length uintptr) []AreaDescriptor {
	end := base + length
	start := sort.Search(len(a.regions), func(i int) bool { return a.regions[i].end() > base })
	var out []AreaDescriptor
	for i := start; i < len(a.regions) && a.regions[i].Base < end; i++ {
		out = append(out, a.regions[i])
	}
	return out
}
