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

//go:build amd64

package jitcall

// ReturnConstant42 is `mov eax, 42; ret` in raw amd64 machine code,
// System V ABI: no arguments, return value in EAX.
func ReturnConstant42() []byte {
	return []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3}
}

func callZeroArgIntFunc(addr uintptr) int64
