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

// Package jitcall provides the minimal trampoline needed to invoke raw
// machine code placed in an executable Mapping through a plain Go
// function call, grounded on the commit_executable scenario in spec.md
// §8 (write bytes encoding a zero-argument function, cast the base
// address to a function pointer, invoke it, expect its return value).
// Go has no built-in way to call through an arbitrary code pointer, so
// each GOARCH gets a tiny assembly stub that transfers control with CALL/
// BL rather than JMP, so the callee's own return instruction comes back
// here instead of unwinding past our caller.
package jitcall

import "unsafe"

// Invoke calls the zero-argument, C-calling-convention function at ptr
// and returns its integer result.
func Invoke(ptr unsafe.Pointer) int64 {
	return callZeroArgIntFunc(uintptr(ptr))
}
