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

package procmaps

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// snapshot walks the address space with VirtualQuery, which spec.md §4.6
// calls out as "a direct lookup" rather than a table scan: each call
// reports the region starting at or after the given address, so the
// whole walk is just repeated calls advancing by RegionSize.
func snapshot() ([]AreaDescriptor, error) {
	var regions []AreaDescriptor
	var addr uintptr
	var mbi windows.MemoryBasicInformation
	size := unsafe.Sizeof(mbi)
	for {
		if err := windows.VirtualQuery(addr, &mbi, size); err != nil {
			// ERROR_INVALID_PARAMETER at the top of the address space
			// marks the end of the walk, not a failure.
			break
		}
		if mbi.RegionSize == 0 {
			break
		}
		if mbi.State == windows.MEM_COMMIT {
			prot, sharing := windowsProtection(mbi.Protect, mbi.Type)
			regions = append(regions, AreaDescriptor{
				Base:       mbi.BaseAddress,
				Length:     mbi.RegionSize,
				Protection: prot,
				Sharing:    sharing,
			})
		}
		next := addr + mbi.RegionSize
		if next <= addr {
			break // overflow guard at the top of the address space
		}
		addr = next
	}
	return regions, nil
}

func windowsProtection(protect uint32, memType uint32) (Protection, Sharing) {
	var p Protection
	base := protect &^ uint32(windows.PAGE_GUARD|windows.PAGE_NOCACHE)
	switch base {
	case windows.PAGE_READONLY:
		p = ProtRead
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		p = ProtRead | ProtWrite
	case windows.PAGE_EXECUTE:
		p = ProtExecute
	case windows.PAGE_EXECUTE_READ:
		p = ProtRead | ProtExecute
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		p = ProtRead | ProtWrite | ProtExecute
	}
	sharing := Private
	if memType == windows.MEM_MAPPED {
		sharing = Shared
	}
	return p, sharing
}
