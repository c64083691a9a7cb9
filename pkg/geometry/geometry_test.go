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

package geometry

import "testing"

func TestQueryBasics(t *testing.T) {
	g, err := Query()
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if g.BasePageSize == 0 {
		t.Fatalf("BasePageSize is 0")
	}
	if !isPowerOfTwo(g.BasePageSize) {
		t.Errorf("BasePageSize %d is not a power of two", g.BasePageSize)
	}
	if g.AllocationGranularity < g.BasePageSize {
		t.Errorf("AllocationGranularity %d is smaller than BasePageSize %d", g.AllocationGranularity, g.BasePageSize)
	}
	if !g.Has(g.BasePageSize) {
		t.Errorf("SupportedPageSizes %v does not contain BasePageSize %d", g.SupportedPageSizes, g.BasePageSize)
	}
}

func TestQueryIsMemoized(t *testing.T) {
	g1, err := Query()
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	g2, err := Query()
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if g1.BasePageSize != g2.BasePageSize || g1.AllocationGranularity != g2.AllocationGranularity {
		t.Errorf("Query returned different results across calls: %+v vs %+v", g1, g2)
	}
}

func isPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}
