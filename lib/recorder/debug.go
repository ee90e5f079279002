// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package recorder

import (
	"os"
	"strings"

	"github.com/omnitrace/omnitrace/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("recorder", "Callback result recording")

func init() {
	l.SetDebug("recorder", strings.Contains(os.Getenv("OTTRACE"), "recorder") || os.Getenv("OTTRACE") == "all")
}
