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

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// diagnostics is the optional sink for the non-fallible logging path
// described in spec.md §7: release() on drop never returns an error, so a
// backend failure there is logged here if a sink is installed, else
// silently dropped.
var diagnostics atomic.Value // holds logrus.FieldLogger

// SetLogger installs logger as the process-wide diagnostics channel. Pass
// nil to disable diagnostics logging (the default). No environment
// variable or config file selects a sink; the caller must opt in
// explicitly, per spec.md §6.
func SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		diagnostics.Store((*loggerBox)(nil))
		return
	}
	diagnostics.Store(&loggerBox{logger})
}

type loggerBox struct {
	logrus.FieldLogger
}

func logDroppedReleaseError(base uintptr, length uintptr, err error) {
	box, _ := diagnostics.Load().(*loggerBox)
	if box == nil || box.FieldLogger == nil {
		return
	}
	box.WithFields(logrus.Fields{
		"base":   base,
		"length": length,
	}).Warn("vmem: release on drop failed: ", err)
}
