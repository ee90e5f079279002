// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build linux

package procdog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/omnitrace/omnitrace/lib/sensor"
)

// procfsBackend enumerates processes by walking the proc pseudo-filesystem.
// The start time from the stat file disambiguates recycled PIDs.
type procfsBackend struct {
	root string
}

// NewProcfsBackend returns a backend reading from the given procfs mount
// point, typically "/proc".
func NewProcfsBackend(root string) sensor.Backend[Attrs] {
	if root == "" {
		root = "/proc"
	}
	return &procfsBackend{root: root}
}

func defaultBackend(cfg Config) sensor.Backend[Attrs] {
	return NewProcfsBackend(cfg.ProcRoot)
}

func (b *procfsBackend) Capture(_ context.Context) (*sensor.Snapshot[Attrs], error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.root, err)
	}

	entities := make(map[sensor.ID]Attrs, len(entries))
	for _, ent := range entries {
		pid, err := strconv.Atoi(ent.Name())
		if err != nil || pid <= 0 {
			continue
		}

		st, err := readStat(filepath.Join(b.root, ent.Name(), "stat"))
		if err != nil {
			// The process exited between ReadDir and here, or the stat
			// format was unexpected. Either way this PID is skipped.
			if !os.IsNotExist(err) {
				sensor.ReportParseError(Class)
				l.Debugf("Skipping pid %d: %v", pid, err)
			}
			continue
		}

		cmdline := readCmdline(filepath.Join(b.root, ent.Name(), "cmdline"))
		if cmdline == "" {
			// Kernel threads have no command line.
			cmdline = "[" + st.comm + "]"
		}

		id := sensor.ID(strconv.Itoa(pid) + ":" + strconv.FormatUint(st.startTime, 10))
		entities[id] = Attrs{
			Name:    st.comm,
			Cmdline: cmdline,
			PPID:    st.ppid,
			State:   st.state,
		}
	}
	return sensor.NewSnapshot(Class, entities), nil
}

type procStat struct {
	comm      string
	state     string
	ppid      int
	startTime uint64
}

// parseStat parses a proc stat line: "pid (comm) state ppid ...". The comm
// field may itself contain spaces and parentheses, so it is delimited by
// the last closing parenthesis. Start time is the 22nd field.
func parseStat(data []byte) (procStat, error) {
	open := bytes.IndexByte(data, '(')
	closing := bytes.LastIndexByte(data, ')')
	if open < 0 || closing < open {
		return procStat{}, fmt.Errorf("malformed stat line")
	}

	rest := strings.Fields(string(data[closing+1:]))
	// rest[0] is field 3 (state); start time is field 22.
	if len(rest) < 20 {
		return procStat{}, fmt.Errorf("short stat line (%d fields after comm)", len(rest))
	}
	ppid, err := strconv.Atoi(rest[1])
	if err != nil {
		return procStat{}, fmt.Errorf("ppid %q: %w", rest[1], err)
	}
	startTime, err := strconv.ParseUint(rest[19], 10, 64)
	if err != nil {
		return procStat{}, fmt.Errorf("start time %q: %w", rest[19], err)
	}
	return procStat{
		comm:      string(data[open+1 : closing]),
		state:     rest[0],
		ppid:      ppid,
		startTime: startTime,
	}, nil
}

func readStat(path string) (procStat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return procStat{}, err
	}
	return parseStat(data)
}

// readCmdline reads a NUL-separated cmdline file into a shell-quoted
// string. Empty on error; the caller falls back to the comm name.
func readCmdline(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return ""
	}
	args := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	return shellquote.Join(args...)
}
