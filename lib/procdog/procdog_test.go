// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package procdog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/omnitrace/omnitrace/lib/procdog"
	"github.com/omnitrace/omnitrace/lib/sensor"
)

type fakeBackend struct {
	snaps []map[sensor.ID]procdog.Attrs
	calls int
}

func (b *fakeBackend) Capture(context.Context) (*sensor.Snapshot[procdog.Attrs], error) {
	i := b.calls
	if i >= len(b.snaps) {
		i = len(b.snaps) - 1
	}
	b.calls++
	return sensor.NewSnapshot(procdog.Class, b.snaps[i]), nil
}

type procEvent struct {
	Type sensor.EventType
	ID   sensor.ID
}

type collector struct {
	mut sync.Mutex
	evs []procEvent
}

func (c *collector) Mask() sensor.EventType { return sensor.AllEvents }

func (c *collector) Call(_ context.Context, ev *sensor.Event[procdog.Attrs]) (sensor.Result, error) {
	c.mut.Lock()
	c.evs = append(c.evs, procEvent{ev.Type, ev.ID})
	c.mut.Unlock()
	return nil, nil
}

func (c *collector) events() []procEvent {
	c.mut.Lock()
	defer c.mut.Unlock()
	return append([]procEvent(nil), c.evs...)
}

func TestProcessExitDetected(t *testing.T) {
	backend := &fakeBackend{snaps: []map[sensor.ID]procdog.Attrs{
		{},
		{"1001:77": {Name: "sleep", Cmdline: "sleep 10", PPID: 1, State: "S"}},
		{},
	}}

	p := procdog.New(procdog.Config{Backend: backend})
	c := &collector{}
	p.Registry().Add(c, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := p.Poll(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// Cycle 1 is the quiet baseline, cycle 2 sees the process appear,
	// cycle 3 sees it exit.
	want := []procEvent{
		{sensor.Created, "1001:77"},
		{sensor.Removed, "1001:77"},
	}
	got := c.events()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestPIDReuseIsExitPlusAppear(t *testing.T) {
	backend := &fakeBackend{snaps: []map[sensor.ID]procdog.Attrs{
		{"500:10": {Name: "worker", Cmdline: "worker --old", PPID: 1, State: "S"}},
		{"500:99": {Name: "worker", Cmdline: "worker --new", PPID: 1, State: "S"}},
	}}

	p := procdog.New(procdog.Config{Backend: backend})
	c := &collector{}
	p.Registry().Add(c, nil)

	ctx := context.Background()
	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}

	// Same PID but a different start time must never read as Changed.
	want := []procEvent{
		{sensor.Removed, "500:10"},
		{sensor.Created, "500:99"},
	}
	got := c.events()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestNameFilter(t *testing.T) {
	backend := &fakeBackend{snaps: []map[sensor.ID]procdog.Attrs{
		{
			"1:1":    {Name: "init", Cmdline: "/sbin/init", PPID: 0, State: "S"},
			"800:20": {Name: "nginx", Cmdline: "nginx -g 'daemon off;'", PPID: 1, State: "S"},
		},
		{
			"1:1": {Name: "init", Cmdline: "/sbin/init", PPID: 0, State: "S"},
		},
	}}

	p := procdog.New(procdog.Config{Backend: backend, Names: []string{"nginx"}})
	c := &collector{}
	p.Registry().Add(c, nil)

	ctx := context.Background()
	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}

	// init is outside the watched set; only nginx's exit is visible.
	got := c.events()
	if len(got) != 1 || got[0] != (procEvent{sensor.Removed, "800:20"}) {
		t.Fatalf("expected only the watched process's Removed event, got %v", got)
	}
}

func TestStateChangeDetected(t *testing.T) {
	backend := &fakeBackend{snaps: []map[sensor.ID]procdog.Attrs{
		{"42:5": {Name: "job", Cmdline: "job run", PPID: 1, State: "R"}},
		{"42:5": {Name: "job", Cmdline: "job run", PPID: 1, State: "Z"}},
	}}

	p := procdog.New(procdog.Config{Backend: backend})

	var fields []string
	p.Registry().Add(sensor.CallbackFunc[procdog.Attrs](sensor.Changed, func(_ context.Context, ev *sensor.Event[procdog.Attrs]) (sensor.Result, error) {
		fields = ev.Fields
		return nil, nil
	}), nil)

	ctx := context.Background()
	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}

	if len(fields) != 1 || fields[0] != "state" {
		t.Errorf("expected changed fields [state], got %v", fields)
	}
}
