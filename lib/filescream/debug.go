// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package filescream

import (
	"os"
	"strings"

	"github.com/omnitrace/omnitrace/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("filescream", "Filesystem tree sensor")

func init() {
	l.SetDebug("filescream", strings.Contains(os.Getenv("OTTRACE"), "filescream") || os.Getenv("OTTRACE") == "all")
}
