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

	"github.com/vmapio/vmem/internal/align"
	"github.com/vmapio/vmem/pkg/backend"
	"github.com/vmapio/vmem/pkg/geometry"
)

// Options collects the parameters of a mapping request: length, an
// optional address hint, backing kind, sharing mode, default protection,
// flag set and an optional explicit page size (spec.md §4.2). Zero value
// is not usable; construct with New().
type Options struct {
	length   uintptr
	hasHint  bool
	hint     uintptr
	kind     MapKind
	sharing  Sharing
	protect  Protection
	flags    Flags
	pageSize uintptr // 0 means the base page size
}

// New returns an Options builder with spec.md §4.2's defaults: Anonymous
// kind, Private sharing, read-only protection, no flags, base page size.
func New(length uintptr) *Options {
	return &Options{
		length:  length,
		kind:    AnonymousKind(),
		sharing: Private,
		protect: ProtRead,
	}
}

// AddressHint sets a preferred base address. If honored by the backend it
// must be a multiple of the allocation granularity; Options.validate
// checks this, the backend is free to ignore the hint entirely.
func (o *Options) AddressHint(addr uintptr) *Options {
	o.hasHint = true
	o.hint = addr
	return o
}

// Kind sets the mapping kind (Anonymous, FileBacked, or Stack). Terminal
// operations that imply a kind (CommitFile implies FileBacked) override
// this field themselves; Kind primarily matters for Reserve and
// CommitAnonymous.
func (o *Options) Kind(k MapKind) *Options {
	o.kind = k
	return o
}

// Sharing selects Private (copy-on-write) or Shared semantics.
func (o *Options) Sharing(s Sharing) *Options {
	o.sharing = s
	return o
}

// Protection records a protection on the builder (read-only by default).
// No terminal operation reads it: Reserve maps with ProtNone,
// CommitAnonymous, CommitFile and Mapping.Commit take their protection as
// an argument, and CommitExecutable and CommitJITRWX set their own.
func (o *Options) Protection(p Protection) *Options {
	o.protect = p
	return o
}

// SetFlags sets the flag bitfield (spec.md §6).
func (o *Options) SetFlags(f Flags) *Options {
	o.flags = f
	return o
}

// PageSize records a page size, which validation checks against
// geometry.SupportedPageSizes (FlagHugePages additionally requires it to
// be larger than the base page size). The backends do not pass it to the
// OS, so mappings are made with the base page size.
func (o *Options) PageSize(n uintptr) *Options {
	o.pageSize = n
	return o
}

// resolved is the outcome of Options.validate: a geometry snapshot plus
// the request's length and hint rounded/checked against it.
type resolved struct {
	geo    geometry.Geometry
	length uintptr
	hint   uintptr
}

// validate implements spec.md §4.2's checking order: geometry, then
// alignment, then kind compatibility, then sharing/protection consistency,
// then flag compatibility. The first failing check determines the error.
func (o *Options) validate(op string, forKind MapKindTag, protect Protection) (resolved, error) {
	geo, err := geometry.Query()
	if err != nil {
		return resolved{}, newError(op, KindBackendFailure, err)
	}

	if o.length == 0 {
		return resolved{}, newError(op, KindInvalidSize, nil)
	}
	length := align.Up(o.length, geo.BasePageSize)
	if o.hasHint && !align.Is(o.hint, geo.AllocationGranularity) {
		return resolved{}, newError(op, KindUnalignedAddress, nil)
	}

	if forKind == KindStack && o.kind.Tag == KindFileBacked {
		return resolved{}, newError(op, KindUnsupportedFlag, nil)
	}
	if forKind == KindFileBacked && o.kind.Tag == KindStack {
		return resolved{}, newError(op, KindUnsupportedFlag, nil)
	}

	if forKind == KindFileBacked {
		if !align.Is(uintptr(o.kind.Offset), geo.AllocationGranularity) {
			return resolved{}, newError(op, KindInvalidOffset, nil)
		}
		if o.sharing == Shared && protect.Has(ProtWrite) && !o.flags.Has(FlagCopyOnWrite) {
			// Best-effort: the core cannot probe the caller's file
			// handle for its open mode (FileHandle only exposes Fd()),
			// so a genuinely read-only file slips through to the
			// backend, which reports PermissionDenied from the OS call
			// itself (spec.md §7).
		}
	}

	if protect.writeExecute() && !o.flags.Has(FlagJIT) {
		return resolved{}, newError(op, KindInvalidProtection, nil)
	}
	if protect.Has(ProtExecute) && !protect.writeExecute() {
		// Plain execute (no simultaneous write) never needs JIT opt-in.
	}

	if o.flags.Has(FlagHugePages) {
		if o.pageSize == 0 || o.pageSize == geo.BasePageSize {
			return resolved{}, newError(op, KindUnsupportedPageSize, nil)
		}
		if !geo.Has(o.pageSize) {
			return resolved{}, newError(op, KindUnsupportedPageSize, nil)
		}
	}
	if o.pageSize != 0 && !geo.Has(o.pageSize) {
		return resolved{}, newError(op, KindUnsupportedPageSize, nil)
	}

	hint := uintptr(0)
	if o.hasHint {
		hint = o.hint
	}
	return resolved{geo: geo, length: length, hint: hint}, nil
}

// Reserve acquires [base, base+length) without committing it: the range
// is carved out of the process's address space but reading or writing it
// faults until a subsequent Commit (spec.md §3's Reserved state).
func (o *Options) Reserve() (*Mapping, error) {
	const op = "reserve"
	r, err := o.validate(op, o.kind.Tag, ProtNone)
	if err != nil {
		return nil, err
	}
	be := backend.New()
	base, err := be.Reserve(toRequest(r.hint, r.length, o))
	if err != nil {
		return nil, wrapBackendError(op, err)
	}
	return newMapping(be, base, r.length, stateReserved, ProtNone, o.kind, o.sharing, o.flags, o.pageSize), nil
}

// CommitAnonymous commits a zero-initialized private-or-shared anonymous
// region directly (without a separate Reserve step).
func (o *Options) CommitAnonymous(protection Protection) (*Mapping, error) {
	const op = "commit_anonymous"
	kind := o.kind
	if kind.Tag == KindFileBacked {
		return nil, newError(op, KindUnsupportedFlag, nil)
	}
	if kind.Tag != KindStack {
		kind = AnonymousKind()
	}
	r, err := o.validate(op, kind.Tag, protection)
	if err != nil {
		return nil, err
	}
	be := backend.New()
	req := toRequest(r.hint, r.length, o)
	req.Protect = protMask(protection)
	base, err := be.Reserve(req)
	if err != nil {
		return nil, wrapBackendError(op, err)
	}
	if err := be.Commit(base, r.length, req); err != nil {
		releaseOnFailure(be, base, r.length)
		return nil, wrapBackendError(op, err)
	}
	m := newMapping(be, base, r.length, stateCommitted, protection, kind, o.sharing, o.flags, o.pageSize)
	if o.flags.Has(FlagLocked) {
		if err := be.Lock(base, r.length); err != nil {
			releaseOnFailure(be, base, r.length)
			return nil, wrapBackendError(op, err)
		}
		m.locked = true
	}
	return m, nil
}

// CommitFile commits a mapping backed by file at offset (a multiple of
// the allocation granularity), with the given protection.
func (o *Options) CommitFile(file FileHandle, offset int64, protection Protection) (*Mapping, error) {
	const op = "commit_file"
	if o.kind.Tag == KindStack {
		return nil, newError(op, KindUnsupportedFlag, nil)
	}
	kind := FileBackedKind(file, offset)
	saved := o.kind
	o.kind = kind
	r, err := o.validate(op, KindFileBacked, protection)
	o.kind = saved
	if err != nil {
		return nil, err
	}
	be := backend.New()
	req := toRequest(r.hint, r.length, o)
	req.Protect = protMask(protection)
	req.File = &backend.FileBacking{FD: file.Fd(), Offset: offset}
	req.Shared = o.sharing == Shared || o.flags.Has(FlagShared)
	base, err := be.Reserve(req)
	if err != nil {
		return nil, wrapBackendError(op, err)
	}
	if err := be.Commit(base, r.length, req); err != nil {
		releaseOnFailure(be, base, r.length)
		return nil, wrapBackendError(op, err)
	}
	m := newMapping(be, base, r.length, stateCommitted, protection, kind, o.sharing, o.flags, o.pageSize)
	if o.flags.Has(FlagLocked) {
		if err := be.Lock(base, r.length); err != nil {
			releaseOnFailure(be, base, r.length)
			return nil, wrapBackendError(op, err)
		}
		m.locked = true
	}
	return m, nil
}

// CommitExecutable is the safe path for small JIT payloads (spec.md
// §4.2): it commits a private anonymous region, writes bytes, flushes the
// instruction cache across the range, then transitions protection to
// read+execute. It never exposes a write+execute window.
func (o *Options) CommitExecutable(code []byte) (*Mapping, error) {
	const op = "commit_executable"
	if len(code) == 0 {
		return nil, newError(op, KindInvalidSize, nil)
	}
	anon := New(uintptr(len(code))).Sharing(Private)
	anon.hasHint, anon.hint = o.hasHint, o.hint
	m, err := anon.CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		return nil, err
	}
	view := m.byteView()
	copy(view, code)
	m.FlushICache(0, uintptr(len(code)))
	if err := m.protect(op, ProtRead|ProtExecute); err != nil {
		_ = m.Close()
		return nil, err
	}
	runtime.KeepAlive(code)
	return m, nil
}

// CommitJITRWX returns a mapping the caller may hold simultaneously
// writable and executable. Requires FlagJIT; on Darwin the backend passes
// the platform's JIT tag so the mapping is legal under the per-task
// W^X entitlement (spec.md §4.2, §4.3).
func (o *Options) CommitJITRWX() (*Mapping, error) {
	const op = "commit_jit_rwx"
	if !o.flags.Has(FlagJIT) {
		return nil, newError(op, KindUnsupportedFlag, nil)
	}
	protection := ProtRead | ProtWrite | ProtExecute
	r, err := o.validate(op, KindAnonymous, protection)
	if err != nil {
		return nil, err
	}
	be := backend.New()
	req := toRequest(r.hint, r.length, o)
	req.Protect = protMask(protection)
	req.JIT = true
	base, err := be.Reserve(req)
	if err != nil {
		return nil, wrapBackendError(op, err)
	}
	if err := be.Commit(base, r.length, req); err != nil {
		releaseOnFailure(be, base, r.length)
		return nil, wrapBackendError(op, err)
	}
	return newMapping(be, base, r.length, stateCommitted, protection, AnonymousKind(), o.sharing, o.flags, o.pageSize), nil
}

func toRequest(hint, length uintptr, o *Options) backend.Request {
	return backend.Request{
		Hint:      hint,
		Length:    length,
		Shared:    o.sharing == Shared || o.flags.Has(FlagShared),
		PageSize:  o.pageSize,
		JIT:       o.flags.Has(FlagJIT),
		Populate:  o.flags.Has(FlagPopulate),
		NoReserve: o.flags.Has(FlagNoReserve),
		Stack:     o.kind.Tag == KindStack || o.flags.Has(FlagStack),
		Locked:    o.flags.Has(FlagLocked),
	}
}

func protMask(p Protection) uint8 {
	var m uint8
	if p.Has(ProtRead) {
		m |= 1
	}
	if p.Has(ProtWrite) {
		m |= 2
	}
	if p.Has(ProtExecute) {
		m |= 4
	}
	return m
}

func releaseOnFailure(be backend.Backend, base, length uintptr) {
	// spec.md §7: a mid-operation failure rolls back to the prior stable
	// state by releasing the freshly reserved range; the rollback itself
	// is not allowed to surface a second error to the caller.
	_ = be.Release(base, length)
}

func wrapBackendError(op string, err error) error {
	if kind, ok := classifyBackendError(err); ok {
		return newError(op, kind, err)
	}
	return newError(op, KindBackendFailure, err)
}
