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

// Package geometry reports the host's page size, allocation granularity,
// and the set of page sizes the kernel is willing to back a mapping with.
// Values are process-wide and queried from the OS exactly once.
package geometry

import (
	"fmt"
	"sync"
)

// Geometry holds the process-wide memory geometry constants.
//
// BasePageSize is a power of two, at least 4096 on every supported
// platform. AllocationGranularity is a multiple of BasePageSize (strictly
// larger on Windows, commonly 65536). SupportedPageSizes is a superset of
// {BasePageSize} containing only sizes the kernel reports as available;
// huge-page enumeration is best-effort and an empty extra set is not an
// error.
type Geometry struct {
	BasePageSize          uintptr
	AllocationGranularity uintptr
	SupportedPageSizes    []uintptr
}

// Has reports whether size is among g.SupportedPageSizes.
func (g Geometry) Has(size uintptr) bool {
	for _, s := range g.SupportedPageSizes {
		if s == size {
			return true
		}
	}
	return false
}

var (
	once  sync.Once
	cache Geometry
	err   error
)

// Query returns the process-wide Geometry, querying the OS on first call
// and memoizing the result (and any query failure) for the lifetime of the
// process.
func Query() (Geometry, error) {
	once.Do(func() {
		cache, err = queryOnce()
		if err == nil && len(cache.SupportedPageSizes) == 0 {
			cache.SupportedPageSizes = []uintptr{cache.BasePageSize}
		}
	})
	return cache, err
}

// MustQuery is like Query but panics if the OS query fails. It is intended
// for callers (like package-level test setup) that have no sensible
// fallback if the host's page size can't be determined.
func MustQuery() Geometry {
	g, err := Query()
	if err != nil {
		panic(fmt.Sprintf("geometry: %v", err))
	}
	return g
}
