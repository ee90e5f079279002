// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package filescream watches file trees for files being created, modified
// and removed, by periodically walking the watched roots.
package filescream

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/omnitrace/omnitrace/lib/sensor"
)

// Class is the entity class tag for file snapshots.
const Class = "file"

// DefaultPulse is deliberately slower than the other sensors; walking a
// tree costs more than reading a proc table.
const DefaultPulse = 3 * time.Second

type EntryType string

const (
	TypeFile    EntryType = "file"
	TypeSymlink EntryType = "symlink"
)

// Attrs is the observed state of one file. Identity is the canonical path.
type Attrs struct {
	Size  int64     `json:"size"`
	Mtime int64     `json:"mtime"` // nanoseconds since epoch
	Type  EntryType `json:"type"`
}

func (a Attrs) Equal(b Attrs) bool {
	return a == b
}

func (a Attrs) Changes(b Attrs) []string {
	var fields []string
	if a.Size != b.Size {
		fields = append(fields, "size")
	}
	if a.Mtime != b.Mtime {
		fields = append(fields, "mtime")
	}
	if a.Type != b.Type {
		fields = append(fields, "type")
	}
	return fields
}

type Config struct {
	// Pulse is the poll interval. Zero means DefaultPulse.
	Pulse time.Duration
	// Roots are the directory trees to watch. At least one is required.
	Roots []string
	// Ignores are glob patterns; matching paths (or base names) are
	// neither descended into nor reported on.
	Ignores []string
	// TrustDirMtime skips re-reading directories whose modification time
	// has not changed, carrying their previous contents forward. This cuts
	// walk cost on large mostly-idle trees but misses modifications that
	// do not touch the parent directory's mtime, so it is off by default.
	TrustDirMtime bool
	// MaxConcurrentCallbacks bounds callback concurrency during dispatch.
	// Zero or less means unbounded.
	MaxConcurrentCallbacks int
}

// New returns a file tree sensor poller. Add callbacks on its Registry,
// then run it (it implements suture.Service).
func New(cfg Config) (*sensor.Poller[Attrs], error) {
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("filescream: no roots to watch")
	}
	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("filescream: root %q: %w", r, err)
		}
		roots = append(roots, abs)
	}
	ignores := make([]glob.Glob, 0, len(cfg.Ignores))
	for _, pat := range cfg.Ignores {
		g, err := glob.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("filescream: ignore pattern %q: %w", pat, err)
		}
		ignores = append(ignores, g)
	}

	backend := &walkBackend{
		roots:         roots,
		ignores:       ignores,
		trustDirMtime: cfg.TrustDirMtime,
	}
	registry := sensor.NewRegistry[Attrs](Class, cfg.MaxConcurrentCallbacks)
	pulse := cfg.Pulse
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return sensor.NewPoller[Attrs](Class, pulse, backend, registry), nil
}

// walkBackend captures a snapshot by walking the watched roots. When
// trustDirMtime is set it keeps per-directory mtime stamps across captures
// and carries forward the previous contents of directories whose stamp is
// unchanged instead of re-reading them.
type walkBackend struct {
	roots         []string
	ignores       []glob.Glob
	trustDirMtime bool

	dirStamps map[string]int64
	last      map[sensor.ID]Attrs
}

func (b *walkBackend) Capture(ctx context.Context) (*sensor.Snapshot[Attrs], error) {
	entities := make(map[sensor.ID]Attrs)
	stamps := make(map[string]int64)

	for _, root := range b.roots {
		if err := b.walkRoot(ctx, root, entities, stamps); err != nil {
			return nil, err
		}
	}

	b.dirStamps = stamps
	b.last = entities
	return sensor.NewSnapshot(Class, entities), nil
}

func (b *walkBackend) walkRoot(ctx context.Context, root string, entities map[sensor.ID]Attrs, stamps map[string]int64) error {
	stack := []string{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b.ignored(path) {
			continue
		}

		fi, err := os.Lstat(path)
		if err != nil {
			// Went away mid-walk, or is unreadable. Either way it is
			// simply absent from this snapshot.
			l.Debugf("Skipping %s: %v", path, err)
			continue
		}

		switch {
		case fi.IsDir():
			mtime := fi.ModTime().UnixNano()
			if b.trustDirMtime && path != root {
				if old, ok := b.dirStamps[path]; ok && old == mtime {
					b.carryForward(path, mtime, entities, stamps)
					continue
				}
			}
			stamps[path] = mtime
			ents, err := os.ReadDir(path)
			if err != nil {
				l.Debugf("Skipping unreadable directory %s: %v", path, err)
				continue
			}
			for _, ent := range ents {
				stack = append(stack, filepath.Join(path, ent.Name()))
			}

		case fi.Mode()&fs.ModeSymlink != 0:
			entities[sensor.ID(path)] = Attrs{
				Size:  fi.Size(),
				Mtime: fi.ModTime().UnixNano(),
				Type:  TypeSymlink,
			}

		case fi.Mode().IsRegular():
			entities[sensor.ID(path)] = Attrs{
				Size:  fi.Size(),
				Mtime: fi.ModTime().UnixNano(),
				Type:  TypeFile,
			}
		}
		// Sockets, fifos and devices are not tracked.
	}
	return nil
}

// carryForward copies the previous capture's records under an unchanged
// directory into the current one, including nested directory stamps.
func (b *walkBackend) carryForward(dir string, mtime int64, entities map[sensor.ID]Attrs, stamps map[string]int64) {
	stamps[dir] = mtime
	for p, s := range b.dirStamps {
		if isUnder(p, dir) {
			stamps[p] = s
		}
	}
	for id, attrs := range b.last {
		if isUnder(string(id), dir) {
			entities[id] = attrs
		}
	}
}

func (b *walkBackend) ignored(path string) bool {
	base := filepath.Base(path)
	for _, g := range b.ignores {
		if g.Match(path) || g.Match(base) {
			return true
		}
	}
	return false
}

func isUnder(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
