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

//go:build unix && !linux && !darwin

package backend

// The remaining unix family members this module builds on (the BSDs,
// Solaris, AIX) get the conservative, fully-no-op flag set: none of
// MAP_NORESERVE/MAP_POPULATE/MAP_JIT and the extra advise kinds are
// assumed portable across that whole family, so every one of them is
// treated as a documented no-op per spec.md §6 rather than guessed at
// per-OS.
const (
	mapNoReserveFlag = 0
	mapPopulateFlag  = 0
	mapJITFlag       = 0
)

func adviseExtra(advice Advice) (int, bool) {
	return 0, false
}
