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
	"errors"
	"os"
	"testing"

	"github.com/vmapio/vmem/internal/jitcall"
	"github.com/vmapio/vmem/pkg/geometry"
	"github.com/vmapio/vmem/pkg/procmaps"
)

func pageSize(t *testing.T) uintptr {
	t.Helper()
	geo, err := geometry.Query()
	if err != nil {
		t.Fatalf("geometry.Query: %v", err)
	}
	return geo.BasePageSize
}

// TestAnonymousRoundTrip covers spec.md §8's basic round trip: commit,
// write, read back, release.
func TestAnonymousRoundTrip(t *testing.T) {
	ps := pageSize(t)
	m, err := New(ps).CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		t.Fatalf("CommitAnonymous: %v", err)
	}
	defer m.Close()

	if !m.IsCommitted() {
		t.Fatal("expected Committed state after CommitAnonymous")
	}
	view, err := m.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	for i := range view {
		view[i] = byte(i)
	}
	for i := range view {
		if view[i] != byte(i) {
			t.Fatalf("byte %d: got %d want %d", i, view[i], byte(i))
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Closing twice is a documented no-op, not a second free.
	if err := m.Close(); err != nil {
		t.Fatalf("second Close returned an error: %v", err)
	}
}

// TestReservedCannotBeDereferenced checks spec.md §4.4's rule that a
// Reserved mapping has no valid pointer or byte view until Commit.
func TestReservedCannotBeDereferenced(t *testing.T) {
	ps := pageSize(t)
	m, err := New(ps).Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer m.Close()

	if m.IsCommitted() {
		t.Fatal("freshly reserved mapping reports Committed")
	}
	if _, err := m.AsPtr(); err == nil {
		t.Fatal("AsPtr succeeded on a Reserved mapping")
	}
	if _, err := m.Bytes(); err == nil {
		t.Fatal("Bytes succeeded on a Reserved mapping")
	}

	if err := m.Commit(ProtRead | ProtWrite); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !m.IsCommitted() {
		t.Fatal("expected Committed after Commit")
	}
	if _, err := m.AsPtr(); err != nil {
		t.Fatalf("AsPtr after Commit: %v", err)
	}
}

// TestFileBackedSharedFlush covers spec.md §8's durability scenario: a
// shared file-backed mapping's writes are visible to a fresh read of the
// file once Flush(sync=true) returns.
func TestFileBackedSharedFlush(t *testing.T) {
	ps := pageSize(t)
	f, err := os.CreateTemp(t.TempDir(), "vmem-flush-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(int64(ps)); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	m, err := New(ps).Sharing(Shared).CommitFile(f, 0, ProtRead|ProtWrite)
	if err != nil {
		t.Fatalf("CommitFile: %v", err)
	}
	defer m.Close()

	view, err := m.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	payload := []byte("vmem-durability-check")
	copy(view, payload)

	if err := m.Flush(true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := f.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("file contents after flush = %q, want %q", got, payload)
	}
}

// TestCopyOnWriteIsolation covers spec.md §8's COW scenario: two Private
// mappings of the same file do not observe each other's writes.
func TestCopyOnWriteIsolation(t *testing.T) {
	ps := pageSize(t)
	f, err := os.CreateTemp(t.TempDir(), "vmem-cow-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(int64(ps)); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if _, err := f.WriteAt([]byte("original"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	a, err := New(ps).Sharing(Private).CommitFile(f, 0, ProtRead|ProtWrite)
	if err != nil {
		t.Fatalf("CommitFile a: %v", err)
	}
	defer a.Close()
	b, err := New(ps).Sharing(Private).CommitFile(f, 0, ProtRead|ProtWrite)
	if err != nil {
		t.Fatalf("CommitFile b: %v", err)
	}
	defer b.Close()

	aView, _ := a.Bytes()
	bView, _ := b.Bytes()
	copy(aView, []byte("mutated-a"))

	if string(bView[:len("original")]) != "original" {
		t.Fatalf("private mapping b observed a's write: %q", bView[:len("original")])
	}

	got := make([]byte, len("original"))
	if _, err := f.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("private write leaked to the backing file: %q", got)
	}
}

// TestSplitAndProtect covers spec.md §8's split scenario: splitting a
// two-page RW mapping and independently making the second half read-only
// leaves the first half writable.
func TestSplitAndProtect(t *testing.T) {
	ps := pageSize(t)
	m, err := New(2 * ps).CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		t.Fatalf("CommitAnonymous: %v", err)
	}

	low, high, err := m.SplitOff(ps)
	if err != nil {
		t.Fatalf("SplitOff: %v", err)
	}
	defer low.Close()
	defer high.Close()

	if low.Len() != ps || high.Len() != ps {
		t.Fatalf("split lengths = %d, %d; want %d, %d", low.Len(), high.Len(), ps, ps)
	}
	if high.Base() != low.Base()+low.Len() {
		t.Fatalf("high.Base() = %#x, want %#x", high.Base(), low.Base()+low.Len())
	}

	if err := high.MakeReadOnly(); err != nil {
		t.Fatalf("MakeReadOnly: %v", err)
	}
	if high.Protection() != ProtRead {
		t.Fatalf("high.Protection() = %v, want %v", high.Protection(), ProtRead)
	}
	if low.Protection() != ProtRead|ProtWrite {
		t.Fatalf("splitting high's protection leaked into low: %v", low.Protection())
	}

	lowView, err := low.Bytes()
	if err != nil {
		t.Fatalf("low.Bytes: %v", err)
	}
	lowView[0] = 7 // still writable; would fault otherwise
}

// TestSplitThenMergeRoundTrips covers spec.md §9 OQ2: merging the exact
// two halves a split produced succeeds and restores the original extent.
func TestSplitThenMergeRoundTrips(t *testing.T) {
	ps := pageSize(t)
	m, err := New(2 * ps).CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		t.Fatalf("CommitAnonymous: %v", err)
	}
	base := m.Base()

	low, high, err := m.SplitOff(ps)
	if err != nil {
		t.Fatalf("SplitOff: %v", err)
	}
	merged, err := low.Merge(high)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	defer merged.Close()

	if merged.Base() != base || merged.Len() != 2*ps {
		t.Fatalf("merged = [%#x, +%d), want [%#x, +%d)", merged.Base(), merged.Len(), base, 2*ps)
	}
}

// TestMergeRejectsUnrelatedMappings covers spec.md §9 OQ2's explicit
// prohibition: two independently created mappings, even if adjacent by
// coincidence, must not merge.
func TestMergeRejectsUnrelatedMappings(t *testing.T) {
	ps := pageSize(t)
	a, err := New(ps).CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		t.Fatalf("CommitAnonymous a: %v", err)
	}
	defer a.Close()
	b, err := New(ps).CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		t.Fatalf("CommitAnonymous b: %v", err)
	}
	defer b.Close()

	if _, err := a.Merge(b); err == nil {
		t.Fatal("Merge succeeded on two unrelated mappings")
	}
}

// TestCommitExecutableRuns covers spec.md §8's JIT scenario: machine code
// written into a CommitExecutable mapping and invoked through a function
// pointer cast returns the expected constant.
func TestCommitExecutableRuns(t *testing.T) {
	code := jitcall.ReturnConstant42()
	if code == nil {
		t.Skip("no machine code generator for this GOARCH")
	}
	m, err := New(uintptr(len(code))).CommitExecutable(code)
	if err != nil {
		t.Fatalf("CommitExecutable: %v", err)
	}
	defer m.Close()

	if m.Protection() != ProtRead|ProtExecute {
		t.Fatalf("Protection() = %v, want r-x", m.Protection())
	}

	ptr, err := m.AsPtr()
	if err != nil {
		t.Fatalf("AsPtr: %v", err)
	}
	if got := jitcall.Invoke(ptr); got != 42 {
		t.Fatalf("jitted function returned %d, want 42", got)
	}
}

// TestCommitJITRWXRequiresFlag covers spec.md §4.2/§6: commit_jit_rwx is
// refused without FlagJIT.
func TestCommitJITRWXRequiresFlag(t *testing.T) {
	ps := pageSize(t)
	if _, err := New(ps).CommitJITRWX(); err == nil {
		t.Fatal("CommitJITRWX succeeded without FlagJIT")
	}
	m, err := New(ps).SetFlags(FlagJIT).CommitJITRWX()
	if err != nil {
		t.Fatalf("CommitJITRWX with FlagJIT: %v", err)
	}
	defer m.Close()
	if m.Protection() != ProtRead|ProtWrite|ProtExecute {
		t.Fatalf("Protection() = %v, want rwx", m.Protection())
	}
}

// TestWriteExecuteRejectedWithoutJIT covers spec.md §6: a plain commit
// requesting simultaneous write+execute is rejected at validation time,
// before any backend call.
func TestWriteExecuteRejectedWithoutJIT(t *testing.T) {
	ps := pageSize(t)
	_, err := New(ps).CommitAnonymous(ProtRead | ProtWrite | ProtExecute)
	if err == nil {
		t.Fatal("CommitAnonymous with write+execute succeeded without FlagJIT")
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("error is not *vmem.Error: %v", err)
	}
	if verr.Kind != KindInvalidProtection {
		t.Fatalf("Kind = %v, want KindInvalidProtection", verr.Kind)
	}
}

// TestDecommitReturnsToReserved covers the optional Committed->Reserved
// transition spec.md §3 describes.
func TestDecommitReturnsToReserved(t *testing.T) {
	ps := pageSize(t)
	m, err := New(ps).CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		t.Fatalf("CommitAnonymous: %v", err)
	}
	defer m.Close()

	if err := m.Decommit(); err != nil {
		t.Fatalf("Decommit: %v", err)
	}
	if m.IsCommitted() {
		t.Fatal("expected Reserved after Decommit")
	}
	if _, err := m.Bytes(); err == nil {
		t.Fatal("Bytes succeeded after Decommit")
	}
	if err := m.Commit(ProtRead); err != nil {
		t.Fatalf("re-Commit after Decommit: %v", err)
	}
}

// TestInvalidLengthRejected covers spec.md §4.2's zero-length check.
func TestInvalidLengthRejected(t *testing.T) {
	if _, err := New(0).Reserve(); err == nil {
		t.Fatal("Reserve succeeded with length 0")
	}
}

// TestAreaIterationReflectsMappingLifetime covers spec.md §8's area
// iteration scenario: a fresh mapping shows up in pkg/procmaps at its
// known base, and disappears from a fresh snapshot once released.
func TestAreaIterationReflectsMappingLifetime(t *testing.T) {
	ps := pageSize(t)
	m, err := New(ps).CommitAnonymous(ProtRead | ProtWrite)
	if err != nil {
		t.Fatalf("CommitAnonymous: %v", err)
	}
	base := m.Base()

	areas, err := procmaps.New()
	if err != nil {
		t.Fatalf("procmaps.New: %v", err)
	}
	d, ok := areas.Query(base)
	if !ok {
		t.Fatalf("no area descriptor contains base %#x", base)
	}
	if !d.Protection.Has(procmaps.ProtRead) || !d.Protection.Has(procmaps.ProtWrite) {
		t.Fatalf("descriptor protection = %v, want read+write", d.Protection)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	areas2, err := procmaps.New()
	if err != nil {
		t.Fatalf("procmaps.New after Close: %v", err)
	}
	if _, ok := areas2.Query(base); ok {
		t.Fatalf("area descriptor for %#x still present after Close", base)
	}
}

// TestErrorIsUsesKind confirms errors.Is works against the Kind sentinel
// pattern pkg/vmem.Error.Is implements.
func TestErrorIsUsesKind(t *testing.T) {
	err := newError("reserve", KindInvalidSize, nil)
	if !err.Is(kindError(KindInvalidSize)) {
		t.Fatal("Is did not match its own Kind")
	}
	if err.Is(kindError(KindOutOfMemory)) {
		t.Fatal("Is matched an unrelated Kind")
	}
}
