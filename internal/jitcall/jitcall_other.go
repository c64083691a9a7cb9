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

//go:build !amd64 && !arm64

package jitcall

// ReturnConstant42 has no encoding for this GOARCH; callers should treat
// a nil result as "skip, unsupported here".
func ReturnConstant42() []byte { return nil }

func callZeroArgIntFunc(addr uintptr) int64 {
	panic("jitcall: no trampoline implemented for this GOARCH")
}
