// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sensor

import (
	"context"
	"time"
)

// Snapshot is the full observed state of one entity class at one instant.
// A snapshot is immutable once captured; the poller owns the retained
// previous snapshot and nothing else may mutate it.
type Snapshot[A Attributes[A]] struct {
	Class    string
	Taken    time.Time
	Entities map[ID]A
}

// NewSnapshot returns a snapshot of the given entities, stamped with the
// current time. The entities map is taken over by the snapshot; the caller
// must not retain it.
func NewSnapshot[A Attributes[A]](class string, entities map[ID]A) *Snapshot[A] {
	if entities == nil {
		entities = make(map[ID]A)
	}
	return &Snapshot[A]{
		Class:    class,
		Taken:    time.Now(),
		Entities: entities,
	}
}

// Backend produces a fresh snapshot from the OS on demand. Capture is
// all-or-nothing: it returns a fully formed snapshot or an error, never a
// partial one. Individual malformed records may be skipped and reported,
// that still counts as a formed snapshot.
type Backend[A Attributes[A]] interface {
	Capture(ctx context.Context) (*Snapshot[A], error)
}
