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

package backend

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// fileMappingTable caches the CreateFileMapping section object for each
// base address this backend has mapped a view at, since spec.md §4.3
// requires the adapter to keep that handle alive "for the mapping's
// lifetime" and hand it back on Release/Flush without the caller ever
// seeing it.
type fileMappingTable struct {
	mu     sync.Mutex
	byBase map[uintptr]entry
}

type entry struct {
	section windows.Handle
	file    windows.Handle
}

func newFileMappingTable() fileMappingTable {
	return fileMappingTable{byBase: make(map[uintptr]entry)}
}

// open creates a new section object backing file, sized to cover at least
// length bytes past file.Offset.
func (t *fileMappingTable) open(file *FileBacking, protect uint8, shared bool, length uintptr) (windows.Handle, uint32, error) {
	prot := winProtect(protect)
	maxSize := uint64(file.Offset) + uint64(length)
	section, err := windows.CreateFileMapping(windows.Handle(file.FD), nil, prot,
		uint32(maxSize>>32), uint32(maxSize), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("CreateFileMapping: %w", err)
	}
	access := fileMapAccess(protect, shared)
	return section, access, nil
}

func fileMapAccess(protect uint8, shared bool) uint32 {
	const (
		r = 1
		w = 2
		x = 4
	)
	access := uint32(windows.FILE_MAP_READ)
	if protect&w != 0 {
		if shared {
			access |= windows.FILE_MAP_WRITE
		} else {
			access |= windows.FILE_MAP_COPY
		}
	}
	if protect&x != 0 {
		access |= windows.FILE_MAP_EXECUTE
	}
	return access
}

func (t *fileMappingTable) track(base uintptr, section, file windows.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byBase[base] = entry{section: section, file: file}
}

func (t *fileMappingTable) isFileBacked(base uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byBase[base]
	return ok
}

func (t *fileMappingTable) takeSection(base uintptr) (windows.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byBase[base]
	if ok {
		delete(t.byBase, base)
	}
	return e.section, ok
}

func (t *fileMappingTable) fileHandle(base uintptr) (windows.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byBase[base]
	if !ok || e.file == 0 {
		return 0, false
	}
	return e.file, true
}
