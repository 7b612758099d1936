// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/oklog/run"

	"github.com/compose/rowflow/events"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/pipeline"
)

func emitterFor(name string) (events.EmitFunc, error) {
	switch name {
	case "log":
		return events.LogEmitter(), nil
	case "json":
		return events.JSONEmitter(os.Stderr), nil
	case "none":
		return events.NoopEmitter(), nil
	}
	return nil, fmt.Errorf("unknown events emitter '%s', expected log, json or none", name)
}

func runRun(args []string) error {
	flagset := baseFlagSet("run")
	emitterName := flagset.String("events", "log", "where pipeline events go, log, json or none")
	flagset.Usage = usageFor(flagset, "rowflow run [flags] <pipeline.yaml>")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	f, err := loadPipeline(pipelineArg(flagset.Args()))
	if err != nil {
		return err
	}
	interval, err := f.metricsInterval()
	if err != nil {
		return err
	}
	emit, err := emitterFor(*emitterName)
	if err != nil {
		return err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}

	p, err := pipeline.New(f.Description,
		pipeline.WithEmitter(emit),
		pipeline.WithMetricsInterval(interval),
		pipeline.WithVersion(version),
		pipeline.WithRunID(id.String()),
		pipeline.WithLogger(log.With("pipeline", f.Name).With("run_id", id.String())),
	)
	if err != nil {
		return err
	}

	var (
		g      run.Group
		result *pipeline.Result
	)
	{
		g.Add(func() error {
			var err error
			result, err = p.Run(context.Background())
			return err
		}, func(error) {
			p.Stop()
		})
	}
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			return interrupt(cancel)
		}, func(error) {
			close(cancel)
		})
	}
	err = g.Run()
	if result != nil {
		result.Render(os.Stdout)
	}
	return err
}

func interrupt(cancel <-chan struct{}) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	select {
	case sig := <-c:
		return fmt.Errorf("received signal %s", sig)
	case <-cancel:
		return errors.New("canceled")
	}
}
