// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build linux

package procdog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseStat(t *testing.T) {
	line := "1001 (sleep) S 1 1001 1001 0 -1 4194304 100 0 0 0 1 2 0 0 20 0 1 0 8867327 8192000 150 18446744073709551615"
	st, err := parseStat([]byte(line))
	if err != nil {
		t.Fatal(err)
	}
	if st.comm != "sleep" || st.state != "S" || st.ppid != 1 || st.startTime != 8867327 {
		t.Errorf("unexpected stat %+v", st)
	}
}

func TestParseStatCommWithSpacesAndParens(t *testing.T) {
	// comm is delimited by the *last* closing parenthesis.
	line := "2002 (tmux: server (1)) S 1 2002 2002 0 -1 4194304 100 0 0 0 1 2 0 0 20 0 1 0 123456 8192000 150 18446744073709551615"
	st, err := parseStat([]byte(line))
	if err != nil {
		t.Fatal(err)
	}
	if st.comm != "tmux: server (1)" {
		t.Errorf("unexpected comm %q", st.comm)
	}
	if st.startTime != 123456 {
		t.Errorf("unexpected start time %d", st.startTime)
	}
}

func TestParseStatMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"1001 no-parens S 1",
		"1001 (short) S 1",
	} {
		if _, err := parseStat([]byte(line)); err == nil {
			t.Errorf("expected parse error for %q", line)
		}
	}
}

func writeProc(t *testing.T, root, pid, stat, cmdline string) {
	t.Helper()
	dir := filepath.Join(root, pid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProcfsCapture(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, "1001",
		"1001 (sleep) S 1 1001 1001 0 -1 4194304 100 0 0 0 1 2 0 0 20 0 1 0 8867327 8192000 150 18446744073709551615",
		"sleep\x0010\x00")
	writeProc(t, root, "7",
		"7 (kworker/0:1) S 2 0 0 0 -1 69238880 0 0 0 0 0 0 0 0 20 0 1 0 12 0 0 18446744073709551615",
		"")
	// Non-numeric entries are ignored.
	if err := os.MkdirAll(filepath.Join(root, "sys"), 0o755); err != nil {
		t.Fatal(err)
	}

	snap, err := NewProcfsBackend(root).Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Entities) != 2 {
		t.Fatalf("expected 2 processes, got %d", len(snap.Entities))
	}

	attrs, ok := snap.Entities["1001:8867327"]
	if !ok {
		t.Fatalf("missing 1001:8867327 in %v", snap.Entities)
	}
	if attrs.Cmdline != "sleep 10" || attrs.PPID != 1 || attrs.State != "S" {
		t.Errorf("unexpected attrs %+v", attrs)
	}

	kw, ok := snap.Entities["7:12"]
	if !ok {
		t.Fatalf("missing kernel thread in %v", snap.Entities)
	}
	if kw.Cmdline != "[kworker/0:1]" {
		t.Errorf("expected bracketed comm for empty cmdline, got %q", kw.Cmdline)
	}
}
