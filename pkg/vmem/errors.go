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

package vmem

import "fmt"

// Kind is the unified error taxonomy over heterogeneous backend errors
// (spec.md §6).
type Kind uint8

const (
	KindInvalidSize Kind = iota + 1
	KindInvalidOffset
	KindUnalignedAddress
	KindUnsupportedPageSize
	KindUnsupportedFlag
	KindPermissionDenied
	KindInvalidProtection
	KindOutOfMemory
	KindFileTooSmall
	KindBackendFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSize:
		return "invalid size"
	case KindInvalidOffset:
		return "invalid offset"
	case KindUnalignedAddress:
		return "unaligned address"
	case KindUnsupportedPageSize:
		return "unsupported page size"
	case KindUnsupportedFlag:
		return "unsupported flag"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidProtection:
		return "invalid protection"
	case KindOutOfMemory:
		return "out of memory"
	case KindFileTooSmall:
		return "file too small"
	case KindBackendFailure:
		return "backend failure"
	default:
		return "unknown error"
	}
}

// Error is the single error type returned by every fallible operation in
// this module. Backend-specific errno/HRESULT/Mach-kern-return values are
// normalized into a Kind where a normalization is possible (see
// classifyBackendError in errors_classify_*.go); otherwise Kind is
// KindBackendFailure and Underlying carries the original platform error.
type Error struct {
	Kind       Kind
	Op         string // short description of the failing operation, e.g. "reserve", "commit_executable"
	Underlying error  // original platform error, if any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("vmem: %s: %s: %v", e.Op, e.Kind, e.Underlying)
	}
	return fmt.Sprintf("vmem: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is allows errors.Is(err, someKindSentinel) style checks against a bare
// Kind wrapped as an error via kindError, without requiring callers to
// construct a full *Error.
func (e *Error) Is(target error) bool {
	if ke, ok := target.(kindError); ok {
		return e.Kind == Kind(ke)
	}
	return false
}

type kindError Kind

func (k kindError) Error() string { return Kind(k).String() }

// newError builds an *Error for op with the given kind and optional
// wrapped platform error.
func newError(op string, kind Kind, underlying error) *Error {
	return &Error{Op: op, Kind: kind, Underlying: underlying}
}
