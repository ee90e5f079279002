// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !linux

package procdog

import "github.com/omnitrace/omnitrace/lib/sensor"

func defaultBackend(_ Config) sensor.Backend[Attrs] {
	return NewPSUtilBackend()
}
