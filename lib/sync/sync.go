// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sync provides mutexes that can report long hold times when
// debugging is enabled for the "sync" facility.
package sync

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

type Mutex interface {
	Lock()
	Unlock()
}

type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

func NewMutex() Mutex {
	if debug {
		return &loggedMutex{}
	}
	return &sync.Mutex{}
}

func NewRWMutex() RWMutex {
	if debug {
		return &loggedRWMutex{}
	}
	return &sync.RWMutex{}
}

type loggedMutex struct {
	sync.Mutex
	lockedAt time.Time
	lockedBy string
}

func (m *loggedMutex) Lock() {
	m.Mutex.Lock()
	m.lockedAt = time.Now()
	m.lockedBy = callerInfo()
}

func (m *loggedMutex) Unlock() {
	held := time.Since(m.lockedAt)
	if held > threshold {
		l.Debugf("Mutex held for %v by %s, unlocked at %s", held, m.lockedBy, callerInfo())
	}
	m.lockedAt = time.Time{}
	m.lockedBy = ""
	m.Mutex.Unlock()
}

type loggedRWMutex struct {
	sync.RWMutex
	lockedAt time.Time
	lockedBy string
}

func (m *loggedRWMutex) Lock() {
	start := time.Now()
	m.RWMutex.Lock()
	if wait := time.Since(start); wait > threshold {
		l.Debugf("RWMutex took %v to lock at %s", wait, callerInfo())
	}
	m.lockedAt = time.Now()
	m.lockedBy = callerInfo()
}

func (m *loggedRWMutex) Unlock() {
	held := time.Since(m.lockedAt)
	if held > threshold {
		l.Debugf("RWMutex held for %v by %s, unlocked at %s", held, m.lockedBy, callerInfo())
	}
	m.lockedAt = time.Time{}
	m.lockedBy = ""
	m.RWMutex.Unlock()
}

func callerInfo() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
