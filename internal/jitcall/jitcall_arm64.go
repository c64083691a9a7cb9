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

//go:build arm64

package jitcall

// ReturnConstant42 is `mov x0, #42; ret` in raw AArch64 machine code
// (little-endian words 0xd2800540, 0xd65f03c0), AAPCS64: no arguments,
// return value in X0.
func ReturnConstant42() []byte {
	return []byte{0x40, 0x05, 0x80, 0xD2, 0xC0, 0x03, 0x5F, 0xD6}
}

func callZeroArgIntFunc(addr uintptr) int64
