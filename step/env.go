// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

import (
	"context"
	"fmt"
	"sync"

	"github.com/compose/rowflow/events"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/pipe"
)

// DefaultReportErrors is the number of error messages kept per step copy.
const DefaultReportErrors = 10

// Env is the state shared by every step copy of one pipeline run. Nothing in
// it is global, so pipelines can run side by side.
type Env struct {
	// SafeMode makes every step check that all its inputs deliver the same
	// row layout.
	SafeMode bool
	// RowSetSize is the capacity of the pipeline's row sets.
	RowSetSize int
	// ReportErrors is the number of error messages kept per step copy.
	ReportErrors int
	// Events receives the events of the run, nil to disable them.
	Events chan events.Event

	Logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	runtimes map[string][]*Runtime
}

// NewEnv creates an Env stopped when parent is done or Stop is called.
func NewEnv(parent context.Context) *Env {
	ctx, cancel := context.WithCancel(parent)
	return &Env{
		RowSetSize:   pipe.DefaultSize,
		ReportErrors: DefaultReportErrors,
		Logger:       log.Base(),
		ctx:          ctx,
		cancel:       cancel,
		runtimes:     make(map[string][]*Runtime),
	}
}

// Context is done once the pipeline is stopped.
func (e *Env) Context() context.Context {
	return e.ctx
}

// Stop raises the stop flag: every blocked or future channel operation of
// the run returns right away.
func (e *Env) Stop() {
	e.cancel()
}

// Stopped reports whether Stop was called.
func (e *Env) Stopped() bool {
	return e.ctx.Err() != nil
}

func (e *Env) register(rt *Runtime) {
	e.mu.Lock()
	defer e.mu.Unlock()
	copies := e.runtimes[rt.name]
	for len(copies) <= rt.copy {
		copies = append(copies, nil)
	}
	copies[rt.copy] = rt
	e.runtimes[rt.name] = copies
}

// Runtime returns copy n of step name, nil when there is none.
func (e *Env) Runtime(name string, n int) *Runtime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	copies := e.runtimes[name]
	if n < 0 || n >= len(copies) {
		return nil
	}
	return copies[n]
}

// Runtimes returns every copy of step name.
func (e *Env) Runtimes(name string) []*Runtime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Runtime, len(e.runtimes[name]))
	copy(out, e.runtimes[name])
	return out
}

// Emit sends ev to the event channel, dropping it when the channel is full.
func (e *Env) Emit(ev events.Event) {
	if e.Events == nil {
		return
	}
	select {
	case e.Events <- ev:
	default:
		e.Logger.Debugf("event channel full, dropping %s", ev)
	}
}

func path(name string, copy int) string {
	return fmt.Sprintf("%s/%d", name, copy)
}
