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

// Package backend defines the platform adapter contract (spec.md §4.3)
// consumed by pkg/vmem's Options/Mapping, and selects the concrete
// implementation for the current GOOS at build time.
package backend

// FileBacking describes the file and offset driving a file-backed
// commit/reserve call. It is nil for anonymous requests.
type FileBacking struct {
	FD     uintptr
	Offset int64
}

// Advice is the set of advisory hints Advise conveys to the kernel.
type Advice uint8

const (
	AdviceSequential Advice = iota
	AdviceRandom
	AdviceWillNeed
	AdviceDontNeed
	AdviceTransparentHugePages
	AdviceNoCoreDump
)

// Request carries everything a Backend needs to translate a validated
// vmem.Options into a platform call. Protect carries vmem.Protection as a
// plain uint8 bitmask, and sharing and the relevant flags are carried as
// individual bools, to avoid an import cycle; pkg/vmem converts at the
// call boundary.
type Request struct {
	Hint      uintptr
	Length    uintptr
	Protect   uint8 // bitmask: 1=read, 2=write, 4=execute
	Shared    bool
	File      *FileBacking
	PageSize  uintptr // 0 means the base page size
	JIT       bool
	Populate  bool
	NoReserve bool
	Stack     bool
	Locked    bool
}

// Backend is the platform adapter contract from spec.md §4.3.
type Backend interface {
	// Reserve acquires an address range without committing it, returning
	// the actual base address (which may differ from req.Hint).
	Reserve(req Request) (base uintptr, err error)

	// Commit backs [base, base+length) with memory/file pages at the
	// given protection. req carries File/PageSize/Shared/JIT as needed.
	Commit(base, length uintptr, req Request) error

	// Protect changes the protection of an already-committed range
	// in place.
	Protect(base, length uintptr, protect uint8) error

	// Decommit returns [base, base+length) to the Reserved state,
	// releasing physical backing without returning address space to
	// the OS.
	Decommit(base, length uintptr) error

	// Release fully unmaps [base, base+length), returning the address
	// range to the OS. Idempotent is not required at this layer; the
	// owning Mapping guarantees exactly-once invocation.
	Release(base, length uintptr) error

	// Flush synchronizes a shared file-backed range's dirty pages to
	// the backing file. sync=true blocks until the kernel reports the
	// pages written.
	Flush(base, length uintptr, sync bool) error

	// Lock pins physical pages for [base, base+length).
	Lock(base, length uintptr) error

	// Unlock releases a prior Lock.
	Unlock(base, length uintptr) error

	// Advise conveys an advisory hint for [base, base+length). Advice
	// not supported by the platform is a successful no-op.
	Advise(base, length uintptr, advice Advice) error
}

// New returns the Backend implementation for the running GOOS.
func New() Backend {
	return newPlatformBackend()
}
