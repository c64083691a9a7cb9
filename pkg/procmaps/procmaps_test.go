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

package procmaps

import (
	"testing"
	"unsafe"
)

// TestNewOrdersByBase covers spec.md §8's property that the walk is
// ascending by Base with no overlaps.
func TestNewOrdersByBase(t *testing.T) {
	areas, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	all := areas.All()
	if len(all) == 0 {
		t.Fatal("expected at least one region in the calling process's own map")
	}
	for i := 1; i < len(all); i++ {
		if all[i].Base < all[i-1].end() {
			t.Fatalf("region %d [%#x,%#x) overlaps or precedes region %d [%#x,%#x)",
				i, all[i].Base, all[i].end(), i-1, all[i-1].Base, all[i-1].end())
		}
	}
}

// TestNextExhaustsInAllOrder covers that Next() yields exactly All()'s
// sequence and then reports exhausted.
func TestNextExhaustsInAllOrder(t *testing.T) {
	areas, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := areas.All()

	var got []AreaDescriptor
	for {
		d, ok := areas.Next()
		if !ok {
			break
		}
		got = append(got, d)
	}
	if len(got) != len(want) {
		t.Fatalf("Next() yielded %d descriptors, All() has %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("Next() descriptor %d = %+v, All()[%d] = %+v", i, got[i], i, want[i])
		}
	}
	if _, ok := areas.Next(); ok {
		t.Fatal("Next() returned ok=true after exhausting the walk")
	}
}

// TestQueryFindsOwnStack covers spec.md §8's property that Query resolves
// an address known to be live (this goroutine's own stack) to a
// descriptor whose range contains it.
func TestQueryFindsOwnStack(t *testing.T) {
	var x int
	addr := stackAddress(&x)

	areas, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d, ok := areas.Query(addr)
	if !ok {
		t.Fatalf("Query(%#x) found no region containing this goroutine's stack", addr)
	}
	if !d.contains(addr) {
		t.Fatalf("descriptor %+v does not actually contain %#x", d, addr)
	}
}

// TestQueryRangeIsConsistentWithQuery covers spec.md §8's property that
// Query at a descriptor's base returns that descriptor, QueryRange over
// its own extent returns at least that descriptor, and every returned
// descriptor truly intersects the range.
func TestQueryRangeIsConsistentWithQuery(t *testing.T) {
	areas, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	all := areas.All()
	if len(all) == 0 {
		t.Fatal("no regions to test against")
	}
	target := all[len(all)/2]

	if d, ok := areas.Query(target.Base); !ok || d != target {
		t.Fatalf("Query(%#x) = %+v, %v; want %+v", target.Base, d, ok, target)
	}

	got := areas.QueryRange(target.Base, target.Length)
	if len(got) == 0 {
		t.Fatalf("QueryRange(%#x, %d) returned nothing, want at least the descriptor itself", target.Base, target.Length)
	}
	found := false
	for _, d := range got {
		if d.Base >= target.Base+target.Length || d.end() <= target.Base {
			t.Fatalf("QueryRange returned a non-intersecting descriptor %+v for range [%#x,%#x)", d, target.Base, target.Base+target.Length)
		}
		if d == target {
			found = true
		}
	}
	if !found {
		t.Fatalf("QueryRange(%#x, %d) did not include the descriptor that defines that exact range", target.Base, target.Length)
	}
}

func stackAddress(p *int) uintptr {
	return uintptr(unsafe.Pointer(p))
}
