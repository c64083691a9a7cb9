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

//go:build darwin

package geometry

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func queryOnce() (Geometry, error) {
	pageSize, err := unix.SysctlUint32("hw.pagesize")
	if err != nil {
		// Fall back to the libc-level query; hw.pagesize is present on
		// every released Darwin kernel, but don't hard-fail if a future
		// sysctl rename slips past this.
		ps := unix.Getpagesize()
		if ps <= 0 {
			return Geometry{}, fmt.Errorf("geometry: sysctl hw.pagesize failed (%v) and getpagesize returned %d", err, ps)
		}
		pageSize = uint32(ps)
	}
	g := Geometry{
		BasePageSize:          uintptr(pageSize),
		AllocationGranularity: uintptr(pageSize),
	}
	g.SupportedPageSizes = []uintptr{g.BasePageSize}
	// Darwin superpages (2MiB on Apple Silicon, best-effort): the kernel
	// doesn't expose an enumeration API comparable to Linux's hugepages
	// sysfs tree, so only the well-known size is offered, and only when
	// the arch-specific hint below confirms it's the expected granule.
	if superpage, ok := darwinSuperpageSize(); ok {
		g.SupportedPageSizes = append(g.SupportedPageSizes, superpage)
	}
	return g, nil
}
