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

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/vmapio/vmem/internal/align"
	"github.com/vmapio/vmem/pkg/backend"
	"github.com/vmapio/vmem/pkg/geometry"
	"github.com/vmapio/vmem/pkg/icache"
)

type stateTag uint8

const (
	stateReserved stateTag = iota
	stateCommitted
	stateReleased
)

// mergeToken is shared by the two Mappings produced by a single SplitOff
// call. Merge only succeeds against the token's recorded sibling, which
// is spec.md §3's "merging of unrelated mappings is disallowed" rule
// implemented without a central registry (per the design note in spec.md
// §9, this module uses the boolean "live" tag approach instead).
type mergeToken struct {
	mu       sync.Mutex
	consumed bool
	lowBase  uintptr
	lowLen   uintptr
	highBase uintptr
	highLen  uintptr
}

// Mapping owns exactly one contiguous, page-aligned address range
// (spec.md §3). It is not copyable in spirit: release is guarded by an
// atomic released flag, so a second Close, or a Close after SplitOff or
// Merge consumed the handle, is a no-op rather than a double-free, and
// state-checking methods refuse a released handle with an error
// (spec.md §9's "live" tag discipline).
type Mapping struct {
	be       backend.Backend
	base     uintptr
	length   uintptr
	state    stateTag
	prot     Protection
	kind     MapKind
	sharing  Sharing
	flags    Flags
	pageSize uintptr
	locked   bool

	mu       sync.Mutex
	released atomic.Bool
	token    *mergeToken // non-nil iff this Mapping came out of SplitOff
}

func newMapping(be backend.Backend, base, length uintptr, state stateTag, protect Protection, kind MapKind, sharing Sharing, flags Flags, pageSize uintptr) *Mapping {
	m := &Mapping{
		be: be, base: base, length: length, state: state,
		prot: protect, kind: kind, sharing: sharing,
		flags: flags, pageSize: pageSize,
	}
	runtime.SetFinalizer(m, finalizeMapping)
	return m
}

// finalizeMapping is the safety net described in spec.md §9: a Mapping
// dropped without an explicit Close/Release still returns its range to
// the OS. Backend failures here can't be returned to anyone, so they are
// only logged via the diagnostics channel (spec.md §7).
func finalizeMapping(m *Mapping) {
	if m.released.Load() {
		return
	}
	if err := m.releaseLocked(); err != nil {
		logDroppedReleaseError(m.base, m.length, err)
	}
}

// Base returns the mapping's starting address. It is meaningless to
// dereference unless the mapping is Committed; use AsPtr for that.
func (m *Mapping) Base() uintptr { return m.base }

// Len returns the mapping's length in bytes.
func (m *Mapping) Len() uintptr { return m.length }

// Protection returns the mapping's current protection. It is ProtNone
// while Reserved.
func (m *Mapping) Protection() Protection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prot
}

// Kind returns the mapping's MapKind.
func (m *Mapping) Kind() MapKind { return m.kind }

// Sharing returns the mapping's Sharing mode.
func (m *Mapping) Sharing() Sharing { return m.sharing }

// Flags returns the mapping's flag set.
func (m *Mapping) Flags() Flags { return m.flags }

// IsLocked reports whether Lock has pinned this mapping's pages.
func (m *Mapping) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// IsCommitted reports whether the mapping is in the Committed state.
func (m *Mapping) IsCommitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateCommitted
}

// AsPtr returns the mapping's base address as an unsafe.Pointer, valid
// only while the mapping is Committed (spec.md §4.4: "reserved mappings
// cannot be dereferenced").
func (m *Mapping) AsPtr() (unsafe.Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateCommitted {
		return nil, newError("as_ptr", KindInvalidProtection, nil)
	}
	return unsafe.Pointer(m.base), nil
}

// Bytes returns a byte slice view over the mapping for as long as it
// remains Committed. Exposing a mutable view of a file-backed mapping is
// the unsafe channel spec.md §4.4 describes: the caller is responsible
// for ensuring the backing file is not truncated below offset+length for
// the lifetime of the returned slice.
func (m *Mapping) Bytes() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateCommitted {
		return nil, newError("bytes", KindInvalidProtection, nil)
	}
	return m.byteViewLocked(), nil
}

func (m *Mapping) byteView() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byteViewLocked()
}

func (m *Mapping) byteViewLocked() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(m.base)), int(m.length))
}

// Commit transitions a Reserved mapping to Committed at the given
// protection, zero-initialized.
func (m *Mapping) Commit(protection Protection) error {
	const op = "commit"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateReserved {
		return newError(op, KindInvalidProtection, nil)
	}
	req := backend.Request{Protect: protMask(protection), Shared: m.sharing == Shared}
	if m.kind.Tag == KindFileBacked {
		req.File = &backend.FileBacking{FD: m.kind.File.Fd(), Offset: m.kind.Offset}
	}
	if err := m.be.Commit(m.base, m.length, req); err != nil {
		return wrapBackendError(op, err)
	}
	m.state = stateCommitted
	m.prot = protection
	return nil
}

// Decommit transitions a Committed mapping back to Reserved, releasing
// physical backing without returning the address range to the OS. Not
// every backend supports this for every kind (spec.md §3 marks the
// transition "optional, platform-permitting").
func (m *Mapping) Decommit() error {
	const op = "decommit"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateCommitted {
		return newError(op, KindInvalidProtection, nil)
	}
	if err := m.be.Decommit(m.base, m.length); err != nil {
		return wrapBackendError(op, err)
	}
	m.state = stateReserved
	m.prot = ProtNone
	return nil
}

// protect is the shared implementation behind MakeReadOnly/MakeReadWrite/
// MakeExec/MakeNone; valid only from Committed (spec.md §4.4).
func (m *Mapping) protect(op string, protection Protection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateCommitted {
		return newError(op, KindInvalidProtection, nil)
	}
	if protection.writeExecute() && !m.flags.Has(FlagJIT) {
		return newError(op, KindInvalidProtection, nil)
	}
	prior := m.prot
	if err := m.be.Protect(m.base, m.length, protMask(protection)); err != nil {
		// The OS protection call is atomic: on failure the prior
		// protection remains in effect (spec.md §4.4), so there is
		// nothing to roll back beyond leaving m.prot untouched.
		return wrapBackendError(op, err)
	}
	m.prot = protection
	_ = prior
	return nil
}

// MakeReadOnly transitions a Committed mapping to read-only.
func (m *Mapping) MakeReadOnly() error { return m.protect("make_read_only", ProtRead) }

// MakeReadWrite transitions a Committed mapping to read-write.
func (m *Mapping) MakeReadWrite() error { return m.protect("make_read_write", ProtRead|ProtWrite) }

// MakeExec transitions a Committed mapping to read-execute.
func (m *Mapping) MakeExec() error { return m.protect("make_exec", ProtRead|ProtExecute) }

// MakeNone transitions a Committed mapping to no access.
func (m *Mapping) MakeNone() error { return m.protect("make_none", ProtNone) }

// Flush synchronizes a shared file-backed range to the backing file.
// sync=true blocks until the kernel reports the pages written.
func (m *Mapping) Flush(sync bool) error {
	const op = "flush"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateCommitted || m.kind.Tag != KindFileBacked || m.sharing != Shared {
		return newError(op, KindInvalidProtection, nil)
	}
	if err := m.be.Flush(m.base, m.length, sync); err != nil {
		return wrapBackendError(op, err)
	}
	return nil
}

// FlushICache performs a portable instruction-cache invalidation over
// [m.base+offset, m.base+offset+length) (spec.md §4.5). Callers must
// invoke this after writing to an executable mapping and before executing
// the new code.
func (m *Mapping) FlushICache(offset, length uintptr) {
	icache.Flush(m.base+offset, length)
}

// Lock pins the mapping's physical pages in memory.
func (m *Mapping) Lock() error {
	const op = "lock"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateCommitted {
		return newError(op, KindInvalidProtection, nil)
	}
	if err := m.be.Lock(m.base, m.length); err != nil {
		return wrapBackendError(op, err)
	}
	m.locked = true
	return nil
}

// Unlock releases a prior Lock.
func (m *Mapping) Unlock() error {
	const op = "unlock"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.be.Unlock(m.base, m.length); err != nil {
		return wrapBackendError(op, err)
	}
	m.locked = false
	return nil
}

// Advise conveys an advisory hint to the kernel for the mapping's range.
func (m *Mapping) Advise(advice backend.Advice) error {
	const op = "advise"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.be.Advise(m.base, m.length, advice); err != nil {
		return wrapBackendError(op, err)
	}
	return nil
}

// SplitOff splits the mapping at offset (a multiple of the base page
// size, strictly between 0 and Len()) into two adjacent Mappings that
// together cover the original range. The receiver is consumed: after a
// successful SplitOff it must not be used again.
func (m *Mapping) SplitOff(offset uintptr) (low, high *Mapping, err error) {
	const op = "split_off"
	m.mu.Lock()
	defer m.mu.Unlock()

	geo, geoErr := geometry.Query()
	if geoErr != nil {
		return nil, nil, newError(op, KindBackendFailure, geoErr)
	}
	if m.state == stateReleased {
		return nil, nil, newError(op, KindInvalidProtection, nil)
	}
	if offset == 0 || offset >= m.length || !align.Is(offset, geo.BasePageSize) {
		return nil, nil, newError(op, KindUnalignedAddress, nil)
	}

	lowKind, highKind := m.kind, m.kind
	if m.kind.Tag == KindFileBacked {
		highKind.Offset = m.kind.Offset + int64(offset)
	}
	token := &mergeToken{
		lowBase: m.base, lowLen: offset,
		highBase: m.base + offset, highLen: m.length - offset,
	}
	low = newMapping(m.be, m.base, offset, m.state, m.prot, lowKind, m.sharing, m.flags, m.pageSize)
	high = newMapping(m.be, m.base+offset, m.length-offset, m.state, m.prot, highKind, m.sharing, m.flags, m.pageSize)
	low.token, high.token = token, token

	m.markReleasedWithoutUnmap()
	return low, high, nil
}

// Merge recombines the receiver with other, its immediate high-neighbor
// produced by the same SplitOff call. Both mappings are consumed; the
// combined Mapping is returned. Merging mappings not produced by a
// shared SplitOff is rejected (spec.md §9 OQ2's "this spec forbids them
// explicitly").
func (m *Mapping) Merge(other *Mapping) (*Mapping, error) {
	const op = "merge"
	if m == other {
		return nil, newError(op, KindInvalidProtection, nil)
	}
	m.mu.Lock()
	other.mu.Lock()
	defer other.mu.Unlock()
	defer m.mu.Unlock()

	if m.token == nil || m.token != other.token {
		return nil, newError(op, KindInvalidProtection, nil)
	}
	if m.state == stateReleased || other.state == stateReleased {
		return nil, newError(op, KindInvalidProtection, nil)
	}
	if m.kind.Tag != other.kind.Tag || m.sharing != other.sharing || m.flags != other.flags || m.state != other.state {
		return nil, newError(op, KindInvalidProtection, nil)
	}
	if m.base+m.length != other.base {
		return nil, newError(op, KindInvalidProtection, nil)
	}

	tok := m.token
	tok.mu.Lock()
	defer tok.mu.Unlock()
	if tok.consumed {
		return nil, newError(op, KindInvalidProtection, nil)
	}
	if tok.lowBase != m.base || tok.lowLen != m.length || tok.highBase != other.base || tok.highLen != other.length {
		return nil, newError(op, KindInvalidProtection, nil)
	}
	tok.consumed = true

	merged := newMapping(m.be, m.base, m.length+other.length, m.state, m.prot, m.kind, m.sharing, m.flags, m.pageSize)
	m.markReleasedWithoutUnmap()
	other.markReleasedWithoutUnmap()
	return merged, nil
}

func (m *Mapping) markReleasedWithoutUnmap() {
	m.released.Store(true)
	m.state = stateReleased
	runtime.SetFinalizer(m, nil)
}

// Close releases the mapping, returning its address range to the OS. It
// is the explicit counterpart to the finalizer safety net and is
// idempotent: every call after the first is a no-op returning nil, whether
// or not the first call's unmap succeeded (spec.md §4.4: "Release is
// implicit and deterministic").
func (m *Mapping) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked()
}

func (m *Mapping) releaseLocked() error {
	if m.released.Swap(true) {
		return nil
	}
	runtime.SetFinalizer(m, nil)
	m.state = stateReleased
	if err := m.be.Release(m.base, m.length); err != nil {
		return wrapBackendError("release", err)
	}
	return nil
}
