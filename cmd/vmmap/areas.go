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

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/vmapio/vmem/pkg/procmaps"
)

type areasCmd struct {
	showPath bool
}

func (*areasCmd) Name() string     { return "areas" }
func (*areasCmd) Synopsis() string { return "dump this process's virtual memory map" }
func (*areasCmd) Usage() string {
	return "areas: print one line per mapped region, closest in spirit to pmap(1)/vmmap(1)\n"
}

func (c *areasCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.showPath, "paths", true, "print the backing file path, if any")
}

func (c *areasCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	areas, err := procmaps.New()
	if err != nil {
		fmt.Println("vmmap: areas:", err)
		return subcommands.ExitFailure
	}
	for _, d := range areas.All() {
		if c.showPath && d.Path != "" {
			fmt.Printf("%#016x-%#016x %s %-7s %s\n", d.Base, d.Base+d.Length, d.Protection, d.Sharing, d.Path)
		} else {
			fmt.Printf("%#016x-%#016x %s %-7s\n", d.Base, d.Base+d.Length, d.Protection, d.Sharing)
		}
	}
	return subcommands.ExitSuccess
}
