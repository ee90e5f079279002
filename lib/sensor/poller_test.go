// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sensor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omnitrace/omnitrace/lib/sensor"
)

// scriptedBackend returns one scripted snapshot (or error) per capture and
// then keeps repeating the last entry.
type scriptedBackend struct {
	script []func() (*sensor.Snapshot[testAttrs], error)
	calls  int
}

func (b *scriptedBackend) Capture(context.Context) (*sensor.Snapshot[testAttrs], error) {
	i := b.calls
	if i >= len(b.script) {
		i = len(b.script) - 1
	}
	b.calls++
	return b.script[i]()
}

func ok(entities map[sensor.ID]testAttrs) func() (*sensor.Snapshot[testAttrs], error) {
	return func() (*sensor.Snapshot[testAttrs], error) {
		return snap(entities), nil
	}
}

func fail(err error) func() (*sensor.Snapshot[testAttrs], error) {
	return func() (*sensor.Snapshot[testAttrs], error) {
		return nil, err
	}
}

func TestPollerCycles(t *testing.T) {
	backend := &scriptedBackend{script: []func() (*sensor.Snapshot[testAttrs], error){
		ok(map[sensor.ID]testAttrs{"a": {Value: "x"}}),
		ok(map[sensor.ID]testAttrs{"a": {Value: "x"}, "b": {Value: "y"}}),
		ok(map[sensor.ID]testAttrs{"b": {Value: "z"}}),
	}}

	reg := sensor.NewRegistry[testAttrs]("test", 0)
	rec := &recordingCallback{mask: sensor.AllEvents}
	reg.Add(rec, nil)

	p := sensor.NewPoller[testAttrs]("test", time.Second, backend, reg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.Poll(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	// Cycle 1 is the quiet baseline, cycle 2 creates b, cycle 3 removes a
	// and changes b.
	want := []sensor.ID{"b", "a", "b"}
	got := rec.ids()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestPollerCaptureErrorKeepsBaseline(t *testing.T) {
	backend := &scriptedBackend{script: []func() (*sensor.Snapshot[testAttrs], error){
		ok(map[sensor.ID]testAttrs{"a": {Value: "x"}}),
		fail(errors.New("mountinfo went away")),
		ok(map[sensor.ID]testAttrs{"a": {Value: "x"}}),
	}}

	reg := sensor.NewRegistry[testAttrs]("test", 0)
	rec := &recordingCallback{mask: sensor.AllEvents}
	reg.Add(rec, nil)

	p := sensor.NewPoller[testAttrs]("test", time.Second, backend, reg)
	ctx := context.Background()

	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Poll(ctx); err == nil {
		t.Fatal("expected the capture error to propagate")
	}
	if err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}

	// The failed cycle must not have advanced the baseline, so recovery with
	// an unchanged entity set yields no fabricated events at all.
	if got := rec.ids(); len(got) != 0 {
		t.Errorf("expected no events across a transient failure, got %v", got)
	}
}

func TestPollerServeDoesNotOverlapCycles(t *testing.T) {
	var dispatching atomic.Bool

	backend := &scriptedBackend{}
	n := 0
	backend.script = []func() (*sensor.Snapshot[testAttrs], error){
		func() (*sensor.Snapshot[testAttrs], error) {
			if dispatching.Load() {
				t.Error("capture started while a dispatch was still in flight")
			}
			// Alternate between two states so every cycle produces events.
			n++
			if n%2 == 0 {
				return snap(map[sensor.ID]testAttrs{"a": {Value: "x"}}), nil
			}
			return snap(map[sensor.ID]testAttrs{"a": {Value: "y"}}), nil
		},
	}

	reg := sensor.NewRegistry[testAttrs]("test", 1)
	reg.Add(sensor.CallbackFunc[testAttrs](sensor.AllEvents, func(context.Context, *sensor.Event[testAttrs]) (sensor.Result, error) {
		dispatching.Store(true)
		time.Sleep(30 * time.Millisecond) // several pulses long
		dispatching.Store(false)
		return nil, nil
	}), nil)

	p := sensor.NewPoller[testAttrs]("test", 5*time.Millisecond, backend, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := p.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("unexpected serve error: %v", err)
	}
}

func TestPollerServeStops(t *testing.T) {
	backend := &scriptedBackend{script: []func() (*sensor.Snapshot[testAttrs], error){
		ok(map[sensor.ID]testAttrs{"a": {Value: "x"}}),
	}}
	reg := sensor.NewRegistry[testAttrs]("test", 0)
	p := sensor.NewPoller[testAttrs]("test", time.Millisecond, backend, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected serve error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
