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

//go:build unix && !darwin

package geometry

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func queryOnce() (Geometry, error) {
	pageSize := unix.Getpagesize()
	if pageSize <= 0 {
		return Geometry{}, fmt.Errorf("geometry: invalid page size %d from getpagesize", pageSize)
	}
	g := Geometry{
		BasePageSize:          uintptr(pageSize),
		AllocationGranularity: uintptr(pageSize),
	}
	g.SupportedPageSizes = append(g.SupportedPageSizes, g.BasePageSize)
	for _, size := range linuxHugePageSizes() {
		g.SupportedPageSizes = append(g.SupportedPageSizes, size)
	}
	return g, nil
}

// linuxHugePageSizes reports the huge page sizes advertised under
// /sys/kernel/mm/hugepages, in bytes. It returns nil (not an error) if the
// directory doesn't exist, matching spec.md's "empty huge-page support is
// not an error."
func linuxHugePageSizes() []uintptr {
	const hugepagesDir = "/sys/kernel/mm/hugepages"
	entries, err := os.ReadDir(hugepagesDir)
	if err != nil {
		return nil
	}
	var sizes []uintptr
	for _, e := range entries {
		var kb uint64
		if _, err := fmt.Sscanf(e.Name(), "hugepages-%dkB", &kb); err == nil && kb > 0 {
			sizes = append(sizes, uintptr(kb)*1024)
		}
	}
	return sizes
}
