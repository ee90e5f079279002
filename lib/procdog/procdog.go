// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package procdog watches running processes appear, change and exit by
// polling a process enumeration backend.
package procdog

import (
	"context"
	"time"

	"github.com/omnitrace/omnitrace/lib/sensor"
)

// Class is the entity class tag for process snapshots.
const Class = "process"

const DefaultPulse = time.Second

// Attrs is the observed state of one process. Identity is pid:starttime,
// so a recycled PID shows up as one process exiting and another appearing,
// never as the old one changing.
type Attrs struct {
	Name    string `json:"name"`
	Cmdline string `json:"cmdline"`
	PPID    int    `json:"ppid"`
	State   string `json:"state"`
}

func (a Attrs) Equal(b Attrs) bool {
	return a == b
}

func (a Attrs) Changes(b Attrs) []string {
	var fields []string
	if a.Name != b.Name {
		fields = append(fields, "name")
	}
	if a.Cmdline != b.Cmdline {
		fields = append(fields, "cmdline")
	}
	if a.PPID != b.PPID {
		fields = append(fields, "ppid")
	}
	if a.State != b.State {
		fields = append(fields, "state")
	}
	return fields
}

type Config struct {
	// Pulse is the poll interval. Zero means DefaultPulse.
	Pulse time.Duration
	// Names restricts the snapshot to processes with one of the given
	// names. Empty means all processes.
	Names []string
	// Backend enumerates processes. Nil selects the platform default: the
	// procfs backend on Linux, the gopsutil backend elsewhere.
	Backend sensor.Backend[Attrs]
	// ProcRoot overrides the procfs mount point for the default Linux
	// backend. Empty means /proc.
	ProcRoot string
	// EmitMissingOnStart logs watched names that are not running when the
	// first snapshot is taken. Only meaningful together with Names.
	EmitMissingOnStart bool
	// MaxConcurrentCallbacks bounds callback concurrency during dispatch.
	// Zero or less means unbounded.
	MaxConcurrentCallbacks int
}

// New returns a process sensor poller. Add callbacks on its Registry, then
// run it (it implements suture.Service).
func New(cfg Config) *sensor.Poller[Attrs] {
	backend := cfg.Backend
	if backend == nil {
		backend = defaultBackend(cfg)
	}
	if len(cfg.Names) > 0 {
		backend = newNameFilter(backend, cfg.Names, cfg.EmitMissingOnStart)
	}
	registry := sensor.NewRegistry[Attrs](Class, cfg.MaxConcurrentCallbacks)
	pulse := cfg.Pulse
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return sensor.NewPoller[Attrs](Class, pulse, backend, registry)
}

// nameFilter narrows any process backend to a watched set of names.
type nameFilter struct {
	inner       sensor.Backend[Attrs]
	names       map[string]struct{}
	emitMissing bool
	primed      bool
}

func newNameFilter(inner sensor.Backend[Attrs], names []string, emitMissing bool) *nameFilter {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &nameFilter{inner: inner, names: set, emitMissing: emitMissing}
}

func (f *nameFilter) Capture(ctx context.Context) (*sensor.Snapshot[Attrs], error) {
	snap, err := f.inner.Capture(ctx)
	if err != nil {
		return nil, err
	}
	entities := make(map[sensor.ID]Attrs)
	for id, attrs := range snap.Entities {
		if _, ok := f.names[attrs.Name]; ok {
			entities[id] = attrs
		}
	}
	if f.emitMissing && !f.primed {
		f.reportMissing(entities)
	}
	f.primed = true
	filtered := *snap
	filtered.Entities = entities
	return &filtered, nil
}

// reportMissing logs watched names with no running process in the first
// snapshot. The quiet first diff cycle never mentions them otherwise.
func (f *nameFilter) reportMissing(entities map[sensor.ID]Attrs) {
	running := make(map[string]struct{}, len(entities))
	for _, attrs := range entities {
		running[attrs.Name] = struct{}{}
	}
	for name := range f.names {
		if _, ok := running[name]; !ok {
			l.Infof("Watched process %q is not running", name)
		}
	}
}
