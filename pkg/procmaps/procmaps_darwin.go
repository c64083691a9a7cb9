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

package procmaps

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Darwin has no /proc filesystem and no pure-Go binding for the Mach
// traps this needs, so the walk goes straight through libsystem_kernel
// via purego the same way other darwin/amd64 and darwin/arm64 process
// introspection in the wild does it: dlopen the kernel shim, resolve
// mach_task_self/mach_vm_region by name, and decode the fixed-layout
// reply structs by hand.
type (
	machPortT          = uint32
	machMsgTypeNumberT = uint32
	machVMAddressT     = uint64
	machVMSizeT        = uint64
	vmProtT            = int32
	vmInheritT         = uint32
	vmBehaviorT        = int32
	booleanT           = int32
	kernReturnT        = int32
)

const (
	kernReturnSuccess      kernReturnT        = 0
	vmRegionBasicInfo64    int32              = 9
	vmRegionBasicInfoCount machMsgTypeNumberT = 9 // sizeof(vm_region_basic_info_64)/4
)

// vmRegionBasicInfo64Reply mirrors struct vm_region_basic_info_64 from
// xnu/osfmk/mach/vm_region.h, packed the same way the kernel emits it.
type vmRegionBasicInfo64Reply struct {
	Protection     vmProtT
	MaxProtection  vmProtT
	Inheritance    vmInheritT
	Shared         booleanT
	Reserved       booleanT
	Offset         [2]uint32 // low, high words; a uint64 would be 8-byte aligned and shift the fields after it
	Behavior       vmBehaviorT
	UserWiredCount uint16
}

var (
	machTaskSelf   func() machPortT
	machVmRegion   func(machPortT, *machVMAddressT, *machVMSizeT, int32, unsafe.Pointer, *machMsgTypeNumberT, *machPortT) kernReturnT
	darwinKernelOK bool
)

func init() {
	lib, err := purego.Dlopen("/usr/lib/system/libsystem_kernel.dylib", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return
	}
	defer func() { recover() }() // RegisterLibFunc panics if a symbol is missing
	purego.RegisterLibFunc(&machTaskSelf, lib, "mach_task_self")
	purego.RegisterLibFunc(&machVmRegion, lib, "mach_vm_region")
	darwinKernelOK = true
}

// snapshot walks the task's address space one mach_vm_region call at a
// time, advancing by the reported region size, the same iterative shape
// as the Linux and Windows backends even though the underlying API is a
// single-region lookup rather than a table.
func snapshot() ([]AreaDescriptor, error) {
	if !darwinKernelOK {
		return nil, fmt.Errorf("procmaps: mach_vm_region unavailable")
	}

	var regions []AreaDescriptor
	var addr machVMAddressT
	task := machTaskSelf()

	for {
		var size machVMSizeT
		var objectName machPortT
		var info vmRegionBasicInfo64Reply
		count := vmRegionBasicInfoCount

		ret := machVmRegion(task, &addr, &size, vmRegionBasicInfo64, unsafe.Pointer(&info), &count, &objectName)
		if ret != kernReturnSuccess {
			break // KERN_INVALID_ADDRESS once the walk reaches the top
		}
		if size == 0 {
			break
		}

		sharing := Private
		if info.Shared != 0 {
			sharing = Shared
		}
		regions = append(regions, AreaDescriptor{
			Base:       uintptr(addr),
			Length:     uintptr(size),
			Protection: darwinProtection(info.Protection),
			Sharing:    sharing,
		})

		next := addr + size
		if next <= addr {
			break
		}
		addr = next
	}
	return regions, nil
}

func darwinProtection(p vmProtT) Protection {
	const (
		vmProtRead    = 0x01
		vmProtWrite   = 0x02
		vmProtExecute = 0x04
	)
	var out Protection
	if p&vmProtRead != 0 {
		out |= ProtRead
	}
	if p&vmProtWrite != 0 {
		out |= ProtWrite
	}
	if p&vmProtExecute != 0 {
		out |= ProtExecute
	}
	return out
}
