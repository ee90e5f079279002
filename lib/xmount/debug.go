// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package xmount

import (
	"os"
	"strings"

	"github.com/omnitrace/omnitrace/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("xmount", "Mount table sensor")

func init() {
	l.SetDebug("xmount", strings.Contains(os.Getenv("OTTRACE"), "xmount") || os.Getenv("OTTRACE") == "all")
}
