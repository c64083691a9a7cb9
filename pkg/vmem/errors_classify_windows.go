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

package vmem

import (
	"errors"

	"golang.org/x/sys/windows"
)

// classifyBackendError normalizes a Windows error code into a Kind where
// spec.md §7 says a mapping is possible.
func classifyBackendError(err error) (Kind, bool) {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_OUTOFMEMORY, windows.ERROR_COMMITMENT_LIMIT:
		return KindOutOfMemory, true
	case windows.ERROR_ACCESS_DENIED:
		return KindPermissionDenied, true
	case windows.ERROR_INVALID_PARAMETER:
		return KindInvalidProtection, true
	default:
		return 0, false
	}
}
