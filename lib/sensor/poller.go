// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sensor

import (
	"context"
	"fmt"
	"time"
)

const DefaultPulse = time.Second

// Poller drives one sensor instance: on every pulse it captures a snapshot
// from the backend, diffs it against the retained previous snapshot and
// dispatches the resulting events through the registry. It implements
// suture.Service.
//
// The previous snapshot is owned exclusively by the poller. Cycles are
// serialized: a cycle runs to completion (including dispatch) before the
// next tick is considered, and ticks that fall due while a cycle is in
// flight coalesce in the ticker and are skipped, never queued. A capture
// error leaves the previous snapshot in place so a transient backend
// failure cannot fabricate a removed-then-created storm on recovery.
type Poller[A Attributes[A]] struct {
	class    string
	pulse    time.Duration
	backend  Backend[A]
	registry *Registry[A]
	prev     *Snapshot[A]
}

func NewPoller[A Attributes[A]](class string, pulse time.Duration, backend Backend[A], registry *Registry[A]) *Poller[A] {
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return &Poller[A]{
		class:    class,
		pulse:    pulse,
		backend:  backend,
		registry: registry,
	}
}

func (p *Poller[A]) Class() string { return p.class }

func (p *Poller[A]) Registry() *Registry[A] { return p.registry }

// Serve runs the pulse loop until the context is cancelled. Capture errors
// are reported and do not stop the loop; the next pulse is the only retry.
func (p *Poller[A]) Serve(ctx context.Context) error {
	l.Infof("%s: polling every %v", p.class, p.pulse)

	ticker := time.NewTicker(p.pulse)
	defer ticker.Stop()

	// Establish the baseline right away rather than one pulse in.
	if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
		l.Warnf("%s: capture failed: %v", p.class, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		start := time.Now()
		if err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Warnf("%s: capture failed: %v", p.class, err)
		}
		if elapsed := time.Since(start); elapsed > p.pulse {
			metricCycleOverrunsTotal.WithLabelValues(p.class).Inc()
			l.Debugf("%s: cycle took %v, longer than the %v pulse; missed ticks are skipped", p.class, elapsed, p.pulse)
		}
	}
}

// Poll runs a single capture, diff and dispatch cycle. It is what Serve
// calls on every tick; it may also be called directly for manual pulsing,
// but never concurrently with Serve or itself.
func (p *Poller[A]) Poll(ctx context.Context) error {
	cur, err := p.backend.Capture(ctx)
	if err != nil {
		metricCaptureErrorsTotal.WithLabelValues(p.class).Inc()
		return err
	}
	metricCyclesTotal.WithLabelValues(p.class).Inc()

	evs := Diff(p.prev, cur)
	if len(evs) > 0 {
		l.Debugf("%s: %d entities, %d events", p.class, len(cur.Entities), len(evs))
		for i := range evs {
			metricEventsTotal.WithLabelValues(p.class, evs[i].Type.String()).Inc()
		}
		p.registry.Dispatch(ctx, evs)
	}

	p.prev = cur
	return nil
}

func (p *Poller[A]) String() string {
	return fmt.Sprintf("sensor.Poller@%p/%s", p, p.class)
}
