// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package xmount

import (
	"fmt"
	"strconv"
	"strings"
)

// mountRecord is one parsed mountinfo line, with escaped fields already
// decoded.
type mountRecord struct {
	mountID   int
	parentID  int
	root      string
	target    string
	options   string
	fsType    string
	source    string
	superOpts string
}

// parseMountinfoLine parses one line of the mountinfo table:
//
//	mountID parentID major:minor root target options [optional...] - fstype source superopts
//
// Octal-escaped characters in root, target and source are decoded.
func parseMountinfoLine(line string) (mountRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return mountRecord{}, fmt.Errorf("short mountinfo line (%d fields)", len(fields))
	}

	mountID, err := strconv.Atoi(fields[0])
	if err != nil {
		return mountRecord{}, fmt.Errorf("mount ID %q: %w", fields[0], err)
	}
	parentID, err := strconv.Atoi(fields[1])
	if err != nil {
		return mountRecord{}, fmt.Errorf("parent ID %q: %w", fields[1], err)
	}
	// fields[2] is major:minor, unused.

	rec := mountRecord{
		mountID:  mountID,
		parentID: parentID,
		root:     unescapeOctal(fields[3]),
		target:   unescapeOctal(fields[4]),
		options:  fields[5],
	}

	// Skip the variable-length optional fields up to the separator.
	rest := fields[6:]
	for len(rest) > 0 && rest[0] != "-" {
		rest = rest[1:]
	}
	if len(rest) < 3 {
		return mountRecord{}, fmt.Errorf("missing fstype/source after separator")
	}
	rec.fsType = rest[1]
	rec.source = unescapeOctal(rest[2])
	if len(rest) > 3 {
		rec.superOpts = rest[3]
	}
	return rec, nil
}

// unescapeOctal decodes the backslash-octal escapes the kernel uses for
// special characters in mountinfo fields: \040 space, \011 tab, \012
// newline, \134 backslash. Unknown sequences pass through unchanged.
func unescapeOctal(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 4
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// escapeOctal re-encodes the characters the kernel escapes in mountinfo
// fields. It is the inverse of unescapeOctal for well-formed input.
func escapeOctal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\\':
			fmt.Fprintf(&b, "\\%03o", s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
