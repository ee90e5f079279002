// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package xmount watches the mount table for mounts appearing, changing
// options and disappearing, by polling the kernel's mountinfo file.
package xmount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/omnitrace/omnitrace/lib/sensor"
)

// Class is the entity class tag for mount snapshots.
const Class = "mount"

const (
	DefaultPulse         = time.Second
	DefaultMountinfoPath = "/proc/self/mountinfo"
)

// Attrs is the observed state of one mount. Escaped mountinfo fields are
// decoded before they end up here, so equivalent-but-differently-escaped
// values never register as a change.
type Attrs struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Root         string `json:"root"`
	FSType       string `json:"fstype"`
	ParentID     int    `json:"parentID"`
	Options      string `json:"options"`
	SuperOptions string `json:"superOptions"`
}

func (a Attrs) Equal(b Attrs) bool {
	return a == b
}

func (a Attrs) Changes(b Attrs) []string {
	var fields []string
	if a.Source != b.Source {
		fields = append(fields, "source")
	}
	if a.Target != b.Target {
		fields = append(fields, "target")
	}
	if a.Root != b.Root {
		fields = append(fields, "root")
	}
	if a.FSType != b.FSType {
		fields = append(fields, "fstype")
	}
	if a.ParentID != b.ParentID {
		fields = append(fields, "parentID")
	}
	if a.Options != b.Options {
		fields = append(fields, "options")
	}
	if a.SuperOptions != b.SuperOptions {
		fields = append(fields, "superOptions")
	}
	return fields
}

type Config struct {
	// Pulse is the poll interval. Zero means DefaultPulse.
	Pulse time.Duration
	// MountinfoPath is the mount table to read. Empty means
	// DefaultMountinfoPath.
	MountinfoPath string
	// Targets restricts the snapshot to mounts on the given mount points.
	// Empty means all mounts.
	Targets []string
	// MaxConcurrentCallbacks bounds callback concurrency during dispatch.
	// Zero or less means unbounded.
	MaxConcurrentCallbacks int
}

// New returns a mount sensor poller. Add callbacks on its Registry, then
// run it (it implements suture.Service).
func New(cfg Config) *sensor.Poller[Attrs] {
	path := cfg.MountinfoPath
	if path == "" {
		path = DefaultMountinfoPath
	}
	targets := make(map[string]struct{}, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets[filepath.Clean(t)] = struct{}{}
	}
	backend := &mountinfoBackend{path: path, targets: targets}
	registry := sensor.NewRegistry[Attrs](Class, cfg.MaxConcurrentCallbacks)
	pulse := cfg.Pulse
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return sensor.NewPoller[Attrs](Class, pulse, backend, registry)
}

// mountinfoBackend reads and parses the mountinfo table. Identity is the
// kernel mount ID, which stays stable for the lifetime of a mount while
// remaining unique within one snapshot.
type mountinfoBackend struct {
	path    string
	targets map[string]struct{}
}

func (b *mountinfoBackend) Capture(_ context.Context) (*sensor.Snapshot[Attrs], error) {
	bs, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.path, err)
	}

	entities := make(map[sensor.ID]Attrs)
	for _, line := range strings.Split(string(bs), "\n") {
		if line == "" {
			continue
		}
		rec, err := parseMountinfoLine(line)
		if err != nil {
			// Malformed lines are skipped, not fatal.
			sensor.ReportParseError(Class)
			l.Warnf("Skipping malformed mountinfo line: %v", err)
			continue
		}
		if len(b.targets) > 0 {
			if _, ok := b.targets[filepath.Clean(rec.target)]; !ok {
				continue
			}
		}
		id := sensor.ID(strconv.Itoa(rec.mountID))
		if _, dup := entities[id]; dup {
			sensor.ReportParseError(Class)
			l.Warnf("Skipping duplicate mount ID %s", id)
			continue
		}
		entities[id] = Attrs{
			Source:       rec.source,
			Target:       rec.target,
			Root:         rec.root,
			FSType:       rec.fsType,
			ParentID:     rec.parentID,
			Options:      rec.options,
			SuperOptions: rec.superOpts,
		}
	}
	return sensor.NewSnapshot(Class, entities), nil
}
