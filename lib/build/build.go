// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package build

import (
	"fmt"
	"runtime"
)

var (
	// Injected by build script
	Version = "unknown-dev"
	Host    = "unknown"
	User    = "unknown"
)

// LongVersionFor returns the long version string for the given program
// name, as printed at startup and by --version.
func LongVersionFor(program string) string {
	return fmt.Sprintf("%s %s (%s %s-%s) %s@%s", program, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, User, Host)
}
