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

//go:build darwin && amd64

package geometry

// darwinSuperpageSize: Intel Macs have no widely available superpage
// granule comparable to Apple Silicon's; huge-page enumeration is
// best-effort per spec.md, so this platform simply reports none.
func darwinSuperpageSize() (uintptr, bool) {
	return 0, false
}
