// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sensor implements the machinery shared by all sensors: periodic
// snapshots of some OS-exposed entity set, diffing consecutive snapshots
// into change events, and masked dispatch of those events to callbacks.
package sensor

import "time"

// EventType is a bit set over the three kinds of change a diff can detect.
type EventType int

const (
	Created EventType = 1 << iota
	Changed
	Removed

	AllEvents = (1 << iota) - 1
)

func (t EventType) String() string {
	switch t {
	case Created:
		return "Created"
	case Changed:
		return "Changed"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ID is the canonical string form of an entity identity: mount ID for
// mounts, pid:starttime for processes, canonical path for files. IDs must
// be stable across polls even when other attributes change. Events within a
// diff group are ordered lexicographically by ID.
type ID string

// Attributes is the comparable state of one entity at one instant. Backends
// must decode any source-level escaping (such as octal escapes in mountinfo
// fields) before attributes enter a snapshot, so that comparison always
// sees the literal values.
type Attributes[A any] interface {
	// Equal reports whether both values describe identical state.
	Equal(other A) bool
	// Changes returns the names of the fields that differ from other, in a
	// stable order. Empty exactly when Equal(other) is true.
	Changes(other A) []string
}

// Event is one detected change. It is pure data and carries no side
// effects. For Removed events Attrs holds the last known attributes; for
// Changed events OldAttrs holds the previous attributes and Fields names
// what differed.
type Event[A Attributes[A]] struct {
	Type     EventType `json:"type"`
	Class    string    `json:"class"`
	ID       ID        `json:"id"`
	Time     time.Time `json:"time"`
	Attrs    A         `json:"attrs"`
	OldAttrs A         `json:"oldAttrs"`
	Fields   []string  `json:"fields,omitempty"`
}
