// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package semaphore implements a context-aware counting semaphore, used to
// bound the number of concurrently running callback invocations.
package semaphore

import (
	"context"
	"sync"
)

type Semaphore struct {
	max       int
	available int
	mut       sync.Mutex
	cond      *sync.Cond
}

// New returns a semaphore with the given number of slots. A max of zero or
// less means no limit; Take then never blocks.
func New(max int) *Semaphore {
	if max < 0 {
		max = 0
	}
	s := Semaphore{
		max:       max,
		available: max,
	}
	s.cond = sync.NewCond(&s.mut)
	return &s
}

// Take acquires one slot, blocking until one is available or the context is
// cancelled.
func (s *Semaphore) Take(ctx context.Context) error {
	if s.max == 0 {
		return ctx.Err()
	}

	done := make(chan struct{})
	var err error
	go func() {
		err = s.takeInner(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cond.Broadcast()
		<-done
	}
	return err
}

func (s *Semaphore) takeInner(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mut.Lock()
	defer s.mut.Unlock()
	for s.available == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	s.available--
	return nil
}

// Give returns a previously taken slot.
func (s *Semaphore) Give() {
	if s.max == 0 {
		return
	}
	s.mut.Lock()
	if s.available >= s.max {
		panic("semaphore: give without take")
	}
	s.available++
	s.cond.Broadcast()
	s.mut.Unlock()
}
