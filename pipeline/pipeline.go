// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/compose/rowflow/events"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/partition"
	"github.com/compose/rowflow/pipe"
	"github.com/compose/rowflow/step"
)

// ErrAlreadyRun is returned by Run on a pipeline that ran before.
var ErrAlreadyRun = errors.New("pipeline already ran")

type instance struct {
	def  StepDef
	step step.Step
	rt   *step.Runtime
}

// A Pipeline is a running instance of a Description: one step.Runtime per
// step copy, connected by row sets.
type Pipeline struct {
	desc    Description
	env     *step.Env
	copies  map[string][]*instance
	all     []*instance
	factory Factory

	emit            events.EmitFunc
	emitter         events.Emitter
	metricsInterval time.Duration
	version         string
	runID           string
	logger          log.Logger

	mu  sync.Mutex
	ran bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmitter sends the events of the run to emit.
func WithEmitter(emit events.EmitFunc) Option {
	return func(p *Pipeline) { p.emit = emit }
}

// WithMetricsInterval emits the metrics of every step copy periodically.
func WithMetricsInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.metricsInterval = d }
}

// WithVersion sets the version reported in boot and exit events.
func WithVersion(v string) Option {
	return func(p *Pipeline) { p.version = v }
}

// WithRunID tags the logs and the result of the run.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithLogger replaces the base logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithFactory creates steps with f instead of the step registry.
func WithFactory(f Factory) Option {
	return func(p *Pipeline) { p.factory = f }
}

// New validates desc and builds every step copy and row set of it. Nothing
// runs until Run is called.
func New(desc Description, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		desc:    desc,
		copies:  make(map[string][]*instance),
		factory: RegistryFactory,
		logger:  log.Base(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := desc.validate(p.factory); err != nil {
		return nil, err
	}

	p.logger = p.logger.With("pipeline", desc.Name)
	if p.runID != "" {
		p.logger = p.logger.With("run_id", p.runID)
	}

	p.env = step.NewEnv(context.Background())
	p.env.SafeMode = desc.SafeMode
	p.env.Logger = p.logger
	if desc.RowSetSize > 0 {
		p.env.RowSetSize = desc.RowSetSize
	}
	if desc.ReportErrors > 0 {
		p.env.ReportErrors = desc.ReportErrors
	}
	if p.emit != nil {
		p.env.Events = make(chan events.Event, 256)
		p.emitter = events.NewEmitter(p.env.Events, p.emit)
	}

	errorHop := make(map[string]bool)
	for _, h := range desc.Hops {
		if h.Error && !h.Disabled {
			errorHop[h.From] = true
		}
	}

	for _, def := range desc.Steps {
		timeout, _ := def.timeout()
		eh := def.ErrorHandling
		if eh == nil && errorHop[def.Name] {
			eh = &step.ErrorHandling{}
		}
		n := def.copies()
		for c := 0; c < n; c++ {
			s, err := p.factory(def, c)
			if err != nil {
				return nil, err
			}
			rt := step.NewRuntime(p.env, step.Options{
				Name:          def.Name,
				Type:          def.Type,
				Copy:          c,
				Copies:        n,
				ErrorHandling: eh,
				MaxRows:       def.MaxRows,
				Timeout:       timeout,
			})
			inst := &instance{def: def, step: s, rt: rt}
			p.copies[def.Name] = append(p.copies[def.Name], inst)
			p.all = append(p.all, inst)
		}
	}

	for _, h := range desc.Hops {
		if !h.Disabled {
			p.connect(h)
		}
	}
	return p, nil
}

// connect creates the row sets of one hop. Equal copy counts on a
// round-robin hop are connected copy to copy, everything else is connected
// every producer copy to every consumer copy.
func (p *Pipeline) connect(h Hop) {
	producers, consumers := p.copies[h.From], p.copies[h.To]
	dist, _ := step.ParseDistribution(h.Distribution)
	var partitioner partition.Partitioner
	if dist == step.Partitioned {
		partitioner = partition.ModPartitioner{Field: h.PartitionField}
	}

	attach := func(rt *step.Runtime, g *step.OutputGroup) {
		if h.Error {
			rt.SetErrorOutput(g)
		} else {
			rt.AddOutput(g)
		}
	}

	if len(producers) == len(consumers) && dist == step.RoundRobin {
		for i, prod := range producers {
			rs := pipe.New(h.From, i, h.To, i, p.env.RowSetSize)
			consumers[i].rt.AddInput(rs)
			attach(prod.rt, &step.OutputGroup{To: h.To, Distribution: dist, RowSets: []*pipe.RowSet{rs}})
		}
		return
	}

	for i, prod := range producers {
		g := &step.OutputGroup{To: h.To, Distribution: dist, Partitioner: partitioner}
		for j, cons := range consumers {
			rs := pipe.New(h.From, i, h.To, j, p.env.RowSetSize)
			cons.rt.AddInput(rs)
			g.RowSets = append(g.RowSets, rs)
		}
		attach(prod.rt, g)
	}
}

// Env returns the environment shared by the step copies.
func (p *Pipeline) Env() *step.Env {
	return p.env
}

// Runtimes returns the runtime of every copy of step name.
func (p *Pipeline) Runtimes(name string) []*step.Runtime {
	out := make([]*step.Runtime, 0, len(p.copies[name]))
	for _, inst := range p.copies[name] {
		out = append(out, inst.rt)
	}
	return out
}

// Endpoints maps every step name to its type, used with the boot event.
func (p *Pipeline) Endpoints() map[string]string {
	m := make(map[string]string, len(p.desc.Steps))
	for _, def := range p.desc.Steps {
		m[def.Name] = def.Type
	}
	return m
}

func (p *Pipeline) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline %s\n", p.desc.Name)
	for _, def := range p.desc.Steps {
		fmt.Fprintf(&b, "  - %-20s %-15s copies: %d\n", def.Name, def.Type, def.copies())
	}
	for _, h := range p.desc.Hops {
		if h.Disabled {
			continue
		}
		dist, _ := step.ParseDistribution(h.Distribution)
		fmt.Fprintf(&b, "  %s [%s]\n", h, dist)
	}
	return b.String()
}

// Stop raises the stop flag: every step copy finishes its current row and
// exits, blocked reads and writes return right away.
func (p *Pipeline) Stop() {
	p.logger.Infoln("stopping pipeline")
	p.env.Stop()
}

// Run initializes every step copy and, when all of them succeeded, runs them
// until every copy is done or the pipeline stops. Cancelling ctx stops the
// pipeline. The Result is returned whether the run succeeded or not, the
// error is the first fatal one.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	p.ran = true
	p.mu.Unlock()

	start := time.Now()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-finished:
		}
	}()

	if p.emitter != nil {
		p.emitter.Start()
		defer p.emitter.Stop()
	}

	if err := p.init(); err != nil {
		return p.result(start), err
	}

	p.send(events.NewBootEvent(time.Now().Unix(), p.version, p.Endpoints()))
	p.logger.With("copies", len(p.all)).Infoln("pipeline started")

	metricsDone := make(chan struct{})
	if p.metricsInterval > 0 && p.env.Events != nil {
		ticker := time.NewTicker(p.metricsInterval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					p.emitMetrics()
				case <-metricsDone:
					return
				}
			}
		}()
	}

	var g errgroup.Group
	for _, inst := range p.all {
		inst := inst
		g.Go(func() error {
			return inst.rt.Run(inst.step)
		})
	}
	err := g.Wait()
	close(metricsDone)

	p.send(events.NewExitEvent(time.Now().Unix(), p.version, p.Endpoints()))
	result := p.result(start)
	if err == nil {
		err = result.Err()
	}
	if err != nil {
		p.logger.Errorf("pipeline failed, %s", err)
	} else {
		p.logger.With("elapsed", result.Elapsed).Infoln("pipeline finished")
	}
	return result, err
}

// init initializes every copy in parallel. When one fails every copy is
// disposed and no row flows.
func (p *Pipeline) init() error {
	var g errgroup.Group
	for _, inst := range p.all {
		inst := inst
		g.Go(func() error {
			return inst.rt.Init(inst.step)
		})
	}
	err := g.Wait()
	if err == nil {
		return nil
	}
	p.env.Stop()
	for _, inst := range p.all {
		inst.rt.Dispose(inst.step)
	}
	return err
}

func (p *Pipeline) send(ev events.Event) {
	if p.env.Events != nil {
		p.env.Events <- ev
	}
}

func (p *Pipeline) emitMetrics() {
	for _, inst := range p.all {
		p.env.Emit(events.NewMetricsEvent(time.Now().Unix(), inst.rt.Path(), inst.rt.Counters()))
	}
}

func (p *Pipeline) result(start time.Time) *Result {
	r := &Result{
		Pipeline: p.desc.Name,
		RunID:    p.runID,
		Stopped:  p.env.Stopped(),
		Elapsed:  time.Since(start),
	}
	for _, inst := range p.all {
		st := inst.rt.Status()
		r.Steps = append(r.Steps, st)
		r.Errors += st.Errors
		r.Rejected += st.Rejected
		if st.Errors > r.MaxErrors {
			r.MaxErrors = st.Errors
		}
	}
	return r
}
