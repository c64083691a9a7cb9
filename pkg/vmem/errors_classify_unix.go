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

//go:build unix

package vmem

import (
	"errors"

	"golang.org/x/sys/unix"
)

// classifyBackendError normalizes a POSIX errno into a Kind where spec.md
// §7 says a mapping is possible; anything else is left as
// KindBackendFailure.
func classifyBackendError(err error) (Kind, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case unix.ENOMEM:
		return KindOutOfMemory, true
	case unix.EACCES, unix.EPERM:
		return KindPermissionDenied, true
	case unix.EINVAL:
		return KindInvalidProtection, true
	default:
		return 0, false
	}
}
