// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package sensor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnitrace",
		Subsystem: "sensor",
		Name:      "cycles_total",
	}, []string{"class"})
	metricCaptureErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnitrace",
		Subsystem: "sensor",
		Name:      "capture_errors_total",
	}, []string{"class"})
	metricCycleOverrunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnitrace",
		Subsystem: "sensor",
		Name:      "cycle_overruns_total",
	}, []string{"class"})
	metricEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnitrace",
		Subsystem: "sensor",
		Name:      "events_total",
	}, []string{"class", "type"})
	metricHandlerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnitrace",
		Subsystem: "sensor",
		Name:      "handler_errors_total",
	}, []string{"class"})
	metricResultsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnitrace",
		Subsystem: "sensor",
		Name:      "results_dropped_total",
	}, []string{"class"})
	metricParseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnitrace",
		Subsystem: "sensor",
		Name:      "parse_errors_total",
	}, []string{"class"})
)

// ReportParseError counts a malformed record skipped by a backend for the
// given entity class.
func ReportParseError(class string) {
	metricParseErrorsTotal.WithLabelValues(class).Inc()
}
