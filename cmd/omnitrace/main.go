// Copyright (C) 2026 The Omnitrace Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command omnitrace runs one or more sensors, logging every detected
// change and optionally recording callback results to a SQLite database
// and serving Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/omnitrace/omnitrace/lib/build"
	"github.com/omnitrace/omnitrace/lib/filescream"
	"github.com/omnitrace/omnitrace/lib/logger"
	"github.com/omnitrace/omnitrace/lib/procdog"
	"github.com/omnitrace/omnitrace/lib/recorder"
	"github.com/omnitrace/omnitrace/lib/sensor"
	"github.com/omnitrace/omnitrace/lib/svcutil"
	"github.com/omnitrace/omnitrace/lib/xmount"
)

var l = logger.DefaultLogger.NewFacility("main", "Main package")

type CLI struct {
	Version kong.VersionFlag `help:"Print version and exit"`
	Verbose bool             `short:"v" help:"Enable debug output"`

	Mounts       bool     `help:"Watch the mount table"`
	MountTargets []string `name:"mount-target" placeholder:"PATH" help:"Restrict mount watching to these mount points"`
	Procs        bool     `help:"Watch running processes"`
	ProcNames    []string `name:"proc-name" placeholder:"NAME" help:"Restrict process watching to these process names"`
	EmitMissing  bool     `name:"emit-missing" help:"Log watched process names that are not running at startup"`
	Watch        []string `name:"watch" placeholder:"PATH" help:"Watch these directory trees"`
	Ignore       []string `name:"ignore" placeholder:"GLOB" help:"Ignore matching paths when watching trees"`

	Pulse           time.Duration `default:"1s" help:"Poll interval for the mount and process sensors"`
	FilePulse       time.Duration `name:"file-pulse" default:"3s" help:"Poll interval for the file tree sensor"`
	ChannelCapacity int           `name:"channel-capacity" default:"64" help:"Result channel capacity"`
	MaxCallbacks    int           `name:"max-callbacks" default:"8" help:"Concurrent callback invocations per sensor"`

	RecordDB string `name:"record-db" placeholder:"PATH" help:"Record callback results to this SQLite database"`
	Metrics  string `name:"metrics" placeholder:"ADDR" help:"Serve Prometheus metrics on this address"`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Description("Polling sensors for mounts, processes and file trees."),
		kong.Vars{"version": build.LongVersionFor("omnitrace")},
	)
	ctx.FatalIfErrorf(cli.Run())
}

func (cli *CLI) Run() error {
	if !cli.Mounts && !cli.Procs && len(cli.Watch) == 0 {
		return fmt.Errorf("nothing to do; pass --mounts, --procs or --watch")
	}
	if cli.Verbose {
		logger.DefaultLogger.SetDebug("main", true)
	}
	l.Infoln(build.LongVersionFor("omnitrace"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup := suture.New("main", svcutil.SpecWithInfoLogger(l))

	// One shared result sink for all sensors, drained by the recorder.
	// Without a recorder no results are emitted at all.
	var results chan sensor.Result
	if cli.RecordDB != "" {
		results = make(chan sensor.Result, cli.ChannelCapacity)
		rec, err := recorder.New(cli.RecordDB, results)
		if err != nil {
			return err
		}
		sup.Add(rec)
	}

	if cli.Mounts {
		p := xmount.New(xmount.Config{
			Pulse:                  cli.Pulse,
			Targets:                cli.MountTargets,
			MaxConcurrentCallbacks: cli.MaxCallbacks,
		})
		p.Registry().Add(loggingCallback[xmount.Attrs](results != nil), results)
		sup.Add(p)
	}

	if cli.Procs {
		p := procdog.New(procdog.Config{
			Pulse:                  cli.Pulse,
			Names:                  cli.ProcNames,
			EmitMissingOnStart:     cli.EmitMissing,
			MaxConcurrentCallbacks: cli.MaxCallbacks,
		})
		p.Registry().Add(loggingCallback[procdog.Attrs](results != nil), results)
		sup.Add(p)
	}

	if len(cli.Watch) > 0 {
		p, err := filescream.New(filescream.Config{
			Pulse:                  cli.FilePulse,
			Roots:                  cli.Watch,
			Ignores:                cli.Ignore,
			MaxConcurrentCallbacks: cli.MaxCallbacks,
		})
		if err != nil {
			return err
		}
		p.Registry().Add(loggingCallback[filescream.Attrs](results != nil), results)
		sup.Add(p)
	}

	if cli.Metrics != "" {
		sup.Add(metricsService(cli.Metrics))
	}

	err := sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		l.Infoln("Shutting down")
		return nil
	}
	return err
}

// loggingCallback logs every event and, when emit is set, turns it into a
// JSON-shaped result for the shared sink.
func loggingCallback[A sensor.Attributes[A]](emit bool) sensor.Callback[A] {
	return sensor.CallbackFunc[A](sensor.AllEvents, func(_ context.Context, ev *sensor.Event[A]) (sensor.Result, error) {
		switch ev.Type {
		case sensor.Changed:
			l.Infof("%s %q changed: %v", ev.Class, ev.ID, ev.Fields)
		default:
			l.Infof("%s %q %v", ev.Class, ev.ID, ev.Type)
		}
		if !emit {
			return nil, nil
		}
		res := sensor.Result{
			"class": ev.Class,
			"type":  ev.Type.String(),
			"id":    string(ev.ID),
			"time":  ev.Time,
			"attrs": ev.Attrs,
		}
		if ev.Type == sensor.Changed {
			res["oldAttrs"] = ev.OldAttrs
			res["fields"] = ev.Fields
		}
		return res, nil
	})
}

func metricsService(addr string) svcutil.ServiceWithError {
	return svcutil.AsService(func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		l.Infof("Metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}, "main.metricsService")
}
