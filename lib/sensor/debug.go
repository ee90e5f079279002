// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sensor

import (
	"os"
	"strings"

	"github.com/omnitrace/omnitrace/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("sensor", "Snapshot polling, diffing and event dispatch")

func init() {
	l.SetDebug("sensor", strings.Contains(os.Getenv("OTTRACE"), "sensor") || os.Getenv("OTTRACE") == "all")
}
