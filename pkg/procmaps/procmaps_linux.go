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

//go:build linux

package procmaps

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// snapshot parses /proc/self/maps, whose lines look like:
//
//	7f2c4a1ff000-7f2c4a201000 rw-p 00000000 00:00 0
//	7f2c4a201000-7f2c4a203000 r-xp 00001000 08:01 131099  /lib/x86_64-linux-gnu/libc.so.6
func snapshot() ([]AreaDescriptor, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("procmaps: %w", err)
	}
	defer f.Close()

	var regions []AreaDescriptor
	scanner := bufio.NewScanner(f)
	// Path components can legitimately contain spaces; bufio's default
	// token size is already generous enough for any single maps line.
	for scanner.Scan() {
		d, ok, err := parseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("procmaps: %w", err)
		}
		if ok {
			regions = append(regions, d)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("procmaps: %w", err)
	}
	return regions, nil
}

func parseLine(line string) (AreaDescriptor, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return AreaDescriptor{}, false, fmt.Errorf("malformed maps line %q", line)
	}
	addrRange := strings.SplitN(fields[0], "-", 2)
	if len(addrRange) != 2 {
		return AreaDescriptor{}, false, fmt.Errorf("malformed address range %q", fields[0])
	}
	start, err := strconv.ParseUint(addrRange[0], 16, 64)
	if err != nil {
		return AreaDescriptor{}, false, err
	}
	end, err := strconv.ParseUint(addrRange[1], 16, 64)
	if err != nil {
		return AreaDescriptor{}, false, err
	}
	perms := fields[1]
	if len(perms) < 4 {
		return AreaDescriptor{}, false, fmt.Errorf("malformed perms %q", perms)
	}

	var prot Protection
	if perms[0] == 'r' {
		prot |= ProtRead
	}
	if perms[1] == 'w' {
		prot |= ProtWrite
	}
	if perms[2] == 'x' {
		prot |= ProtExecute
	}
	sharing := Private
	if perms[3] == 's' {
		sharing = Shared
	}

	var path string
	if len(fields) >= 6 {
		path = strings.Join(fields[5:], " ")
	}

	return AreaDescriptor{
		Base:       uintptr(start),
		Length:     uintptr(end - start),
		Protection: prot,
		Sharing:    sharing,
		Path:       path,
	}, true, nil
}
