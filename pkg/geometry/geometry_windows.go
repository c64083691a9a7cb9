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

//go:build windows

package geometry

import (
	"golang.org/x/sys/windows"
)

func queryOnce() (Geometry, error) {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)

	g := Geometry{
		BasePageSize:          uintptr(info.PageSize),
		AllocationGranularity: uintptr(info.AllocationGranularity),
	}
	g.SupportedPageSizes = []uintptr{g.BasePageSize}

	// GetLargePageMinimum returns 0 if large pages aren't supported (e.g.
	// the process lacks SeLockMemoryPrivilege); that's not an error, per
	// spec.md.
	if large := windows.GetLargePageMinimum(); large > 0 {
		g.SupportedPageSizes = append(g.SupportedPageSizes, large)
	}
	return g, nil
}
