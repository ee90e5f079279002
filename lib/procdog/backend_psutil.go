// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package procdog

import (
	"context"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/omnitrace/omnitrace/lib/sensor"
)

// psutilBackend enumerates processes through gopsutil, which works across
// the Unixes without a procfs. Identity uses the process creation time in
// place of the procfs start tick.
type psutilBackend struct{}

// NewPSUtilBackend returns the portable gopsutil process backend.
func NewPSUtilBackend() sensor.Backend[Attrs] {
	return psutilBackend{}
}

func (psutilBackend) Capture(ctx context.Context) (*sensor.Snapshot[Attrs], error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	entities := make(map[sensor.ID]Attrs, len(procs))
	for _, p := range procs {
		created, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			// Exited between enumeration and inspection.
			continue
		}
		name, _ := p.NameWithContext(ctx)
		ppid, _ := p.PpidWithContext(ctx)
		statuses, _ := p.StatusWithContext(ctx)

		cmdline := ""
		if args, err := p.CmdlineSliceWithContext(ctx); err == nil && len(args) > 0 {
			cmdline = shellquote.Join(args...)
		}
		if cmdline == "" {
			cmdline = "[" + name + "]"
		}

		id := sensor.ID(strconv.Itoa(int(p.Pid)) + ":" + strconv.FormatInt(created, 10))
		entities[id] = Attrs{
			Name:    name,
			Cmdline: cmdline,
			PPID:    int(ppid),
			State:   strings.Join(statuses, ","),
		}
	}
	return sensor.NewSnapshot(Class, entities), nil
}
