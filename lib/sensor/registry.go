// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sensor

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/omnitrace/omnitrace/lib/semaphore"
	"github.com/omnitrace/omnitrace/lib/sync"
)

// Result is the JSON-shaped record a callback may emit for the result
// channel.
type Result map[string]any

// Callback receives events whose type bit intersects its mask. Call may
// block on I/O; it runs on its own goroutine, bounded by the registry's
// semaphore. A non-nil Result is forwarded to the subscription's result
// channel, if one was given at Add time.
type Callback[A Attributes[A]] interface {
	Mask() EventType
	Call(ctx context.Context, ev *Event[A]) (Result, error)
}

type funcCallback[A Attributes[A]] struct {
	mask EventType
	fn   func(ctx context.Context, ev *Event[A]) (Result, error)
}

func (c *funcCallback[A]) Mask() EventType { return c.mask }

func (c *funcCallback[A]) Call(ctx context.Context, ev *Event[A]) (Result, error) {
	return c.fn(ctx, ev)
}

// CallbackFunc adapts a plain function to the Callback interface.
func CallbackFunc[A Attributes[A]](mask EventType, fn func(ctx context.Context, ev *Event[A]) (Result, error)) Callback[A] {
	return &funcCallback[A]{mask: mask, fn: fn}
}

// Subscription is the handle returned by Add, used to deregister.
type Subscription[A Attributes[A]] struct {
	cb      Callback[A]
	results chan<- Result
}

// Registry holds the subscriptions of one sensor instance and dispatches
// events to those whose mask matches. It is never shared between sensor
// instances.
type Registry[A Attributes[A]] struct {
	class string
	subs  []*Subscription[A]
	sem   *semaphore.Semaphore
	mut   sync.Mutex
}

// NewRegistry returns an empty registry for the given entity class. Up to
// maxConcurrent callback invocations run at a time; zero or less means
// unbounded.
func NewRegistry[A Attributes[A]](class string, maxConcurrent int) *Registry[A] {
	return &Registry[A]{
		class: class,
		sem:   semaphore.New(maxConcurrent),
		mut:   sync.NewMutex(),
	}
}

// Add registers a callback. Multiple subscriptions may have overlapping
// masks. The results channel may be nil if the callback's results are of no
// interest; when given it must be buffered, as results are dropped (and
// counted) rather than blocking dispatch when it is full.
func (r *Registry[A]) Add(cb Callback[A], results chan<- Result) *Subscription[A] {
	s := &Subscription[A]{cb: cb, results: results}
	r.mut.Lock()
	l.Debugf("%s: add subscription with mask %v", r.class, cb.Mask())
	r.subs = append(r.subs, s)
	r.mut.Unlock()
	return s
}

// Remove deregisters a subscription. A callback invocation already in
// flight completes normally; the subscription sees no further events.
func (r *Registry[A]) Remove(s *Subscription[A]) {
	r.mut.Lock()
	for i, ss := range r.subs {
		if s == ss {
			last := len(r.subs) - 1
			r.subs[i] = r.subs[last]
			r.subs[last] = nil
			r.subs = r.subs[:last]
			break
		}
	}
	r.mut.Unlock()
}

// Dispatch delivers the events, in order, to every subscription whose mask
// intersects the event type. The set of subscriptions is fixed at entry so
// all of them observe the identical sequence. Callbacks for a single event
// run concurrently and are awaited before the next event is delivered; a
// callback that returns an error or panics is reported and isolated, never
// aborting delivery to others.
func (r *Registry[A]) Dispatch(ctx context.Context, evs []Event[A]) {
	r.mut.Lock()
	subs := make([]*Subscription[A], len(r.subs))
	copy(subs, r.subs)
	r.mut.Unlock()

	if len(subs) == 0 {
		return
	}

	var wg stdsync.WaitGroup
	for i := range evs {
		ev := &evs[i]
		for _, s := range subs {
			if s.cb.Mask()&ev.Type == 0 {
				continue
			}
			if err := r.sem.Take(ctx); err != nil {
				// Cancelled mid-dispatch; results already delivered stand.
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(s *Subscription[A]) {
				defer wg.Done()
				defer r.sem.Give()
				r.invoke(ctx, s, ev)
			}(s)
		}
		// All subscriptions must have seen this event before the next one
		// is delivered.
		wg.Wait()
	}
}

func (r *Registry[A]) invoke(ctx context.Context, s *Subscription[A], ev *Event[A]) {
	res, err := r.callSafe(ctx, s, ev)
	if err != nil {
		metricHandlerErrorsTotal.WithLabelValues(r.class).Inc()
		l.Warnf("%s: callback failed for %v %q: %v", r.class, ev.Type, ev.ID, err)
		return
	}
	if res == nil || s.results == nil {
		return
	}
	select {
	case s.results <- res:
	default:
		// Fixed backpressure policy: the newest result is dropped, counted
		// and logged. Dispatch never blocks on a slow result consumer.
		metricResultsDroppedTotal.WithLabelValues(r.class).Inc()
		l.Warnf("%s: result channel full; dropping result for %v %q", r.class, ev.Type, ev.ID)
	}
}

func (r *Registry[A]) callSafe(ctx context.Context, s *Subscription[A], ev *Event[A]) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("callback panic: %v", p)
		}
	}()
	return s.cb.Call(ctx, ev)
}
