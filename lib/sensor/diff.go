// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sensor

import "slices"

// Diff compares two consecutive snapshots of the same entity class and
// returns the minimal set of change events between them.
//
// A nil prev means this is the first cycle; no events are produced, so
// startup never manifests as a storm of Created events. Otherwise each
// identity present only in prev yields one Removed, each identity present
// only in cur yields one Created, and each identity present in both with
// differing attributes yields one Changed. Identities with equal attributes
// in both snapshots yield nothing.
//
// The result is deterministic: Removed events first, then Changed, then
// Created, each group ordered by ID.
func Diff[A Attributes[A]](prev, cur *Snapshot[A]) []Event[A] {
	if cur == nil {
		panic("sensor: diff against nil current snapshot")
	}
	if prev == nil {
		return nil
	}
	if prev.Class != cur.Class {
		panic("sensor: diff across entity classes (" + prev.Class + " vs " + cur.Class + ")")
	}

	var removed, changed, created []ID
	for id := range prev.Entities {
		if _, ok := cur.Entities[id]; !ok {
			removed = append(removed, id)
		}
	}
	for id, attrs := range cur.Entities {
		old, ok := prev.Entities[id]
		switch {
		case !ok:
			created = append(created, id)
		case !old.Equal(attrs):
			changed = append(changed, id)
		}
	}

	if len(removed)+len(changed)+len(created) == 0 {
		return nil
	}

	slices.Sort(removed)
	slices.Sort(changed)
	slices.Sort(created)

	evs := make([]Event[A], 0, len(removed)+len(changed)+len(created))
	for _, id := range removed {
		evs = append(evs, Event[A]{
			Type:  Removed,
			Class: cur.Class,
			ID:    id,
			Time:  cur.Taken,
			Attrs: prev.Entities[id],
		})
	}
	for _, id := range changed {
		old := prev.Entities[id]
		attrs := cur.Entities[id]
		evs = append(evs, Event[A]{
			Type:     Changed,
			Class:    cur.Class,
			ID:       id,
			Time:     cur.Taken,
			Attrs:    attrs,
			OldAttrs: old,
			Fields:   old.Changes(attrs),
		})
	}
	for _, id := range created {
		evs = append(evs, Event[A]{
			Type:  Created,
			Class: cur.Class,
			ID:    id,
			Time:  cur.Taken,
			Attrs: cur.Entities[id],
		})
	}
	return evs
}
