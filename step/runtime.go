// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/compose/rowflow/events"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/pipe"
	"github.com/compose/rowflow/row"
)

// PollInterval is how long GetRow waits on one of several empty inputs before
// it looks at the next one.
var PollInterval = 5 * time.Millisecond

// Default names of the fields appended to rejected rows.
const (
	DefaultNrErrorsField     = "nr_errors"
	DefaultDescriptionsField = "error_descriptions"
	DefaultFieldsField       = "error_fields"
	DefaultCodesField        = "error_codes"
)

// ErrorHandling configures where a step sends the rows it rejects and how
// many it may reject before it fails.
type ErrorHandling struct {
	// MaxErrors fails the step once more rows were rejected, 0 for no limit.
	MaxErrors int64 `json:"max_errors" yaml:"max_errors"`
	// MaxPercentErrors fails the step once the rejected share of the rows read
	// exceeds it, 0 for no limit.
	MaxPercentErrors int `json:"max_percent_errors" yaml:"max_percent_errors"`
	// MinPercentRows is the number of rows to read before MaxPercentErrors applies.
	MinPercentRows int64 `json:"min_percent_rows" yaml:"min_percent_rows"`

	NrErrorsField     string `json:"nr_errors_field" yaml:"nr_errors_field"`
	DescriptionsField string `json:"descriptions_field" yaml:"descriptions_field"`
	FieldsField       string `json:"fields_field" yaml:"fields_field"`
	CodesField        string `json:"codes_field" yaml:"codes_field"`
}

func (eh ErrorHandling) withDefaults() ErrorHandling {
	if eh.NrErrorsField == "" && eh.DescriptionsField == "" && eh.FieldsField == "" && eh.CodesField == "" {
		eh.NrErrorsField = DefaultNrErrorsField
		eh.DescriptionsField = DefaultDescriptionsField
		eh.FieldsField = DefaultFieldsField
		eh.CodesField = DefaultCodesField
	}
	return eh
}

// Options configures one step copy.
type Options struct {
	Name   string
	Type   string
	Copy   int
	Copies int

	// ErrorHandling is nil when rejected rows fail the step.
	ErrorHandling *ErrorHandling
	// MaxRows finishes the step once it has written that many rows, 0 for no limit.
	MaxRows int64
	// Timeout fails the step when it runs longer, 0 for no limit.
	Timeout time.Duration
}

// RowListener is told about every row a step copy reads and writes.
type RowListener interface {
	RowRead(meta *row.Meta, r row.Row)
	RowWritten(meta *row.Meta, r row.Row)
	ErrorRowWritten(meta *row.Meta, r row.Row)
}

// Status is a snapshot of the counters of one step copy.
type Status struct {
	Step     string
	Type     string
	Copy     int
	State    State
	Read     int64
	Written  int64
	Input    int64
	Output   int64
	Rejected int64
	Errors   int64
	Elapsed  time.Duration
	Messages []string
}

// Runtime executes one copy of a step. Apart from Status, State and
// AddRowListener its methods are only called from the copy's own goroutine.
type Runtime struct {
	env  *Env
	opts Options
	name string
	copy int
	log  log.Logger
	ctx  context.Context

	state int32

	inputs      []*pipe.RowSet
	active      []*pipe.RowSet
	current     int
	outputs     []*OutputGroup
	errorOutput *OutputGroup
	errHandling ErrorHandling

	inputMeta *row.Meta
	safeMeta  *row.Meta
	safeFrom  string
	lastMeta  *row.Meta
	lastRow   row.Row

	errorMeta    *row.Meta
	errorMetaFor *row.Meta

	read, written, input, output, rejected, errs int64
	budget                                       int32

	mu        sync.RWMutex
	messages  []string
	listeners []RowListener
	started   time.Time
	finished  time.Time

	disposeOnce sync.Once
	disposeErr  error
	doneOnce    sync.Once
}

// NewRuntime creates the runtime of one step copy and registers it with env.
func NewRuntime(env *Env, opts Options) *Runtime {
	if opts.Copies < 1 {
		opts.Copies = 1
	}
	rt := &Runtime{
		env:  env,
		opts: opts,
		name: opts.Name,
		copy: opts.Copy,
		ctx:  env.Context(),
		log:  env.Logger.With("step", opts.Name).With("copy", opts.Copy),
	}
	if opts.ErrorHandling != nil {
		rt.errHandling = opts.ErrorHandling.withDefaults()
	}
	env.register(rt)
	return rt
}

// AddInput connects rs as an input of this copy.
func (rt *Runtime) AddInput(rs *pipe.RowSet) {
	rt.inputs = append(rt.inputs, rs)
}

// AddOutput connects g as an output of this copy.
func (rt *Runtime) AddOutput(g *OutputGroup) {
	rt.outputs = append(rt.outputs, g)
}

// SetErrorOutput connects g as the error hop of this copy.
func (rt *Runtime) SetErrorOutput(g *OutputGroup) {
	rt.errorOutput = g
}

// Name returns the step name.
func (rt *Runtime) Name() string { return rt.name }

// Copy returns the copy number, 0 based.
func (rt *Runtime) Copy() int { return rt.copy }

// Copies returns the number of copies of the step.
func (rt *Runtime) Copies() int { return rt.opts.Copies }

// Path identifies the copy in logs and events.
func (rt *Runtime) Path() string { return path(rt.name, rt.copy) }

// Env returns the pipeline environment.
func (rt *Runtime) Env() *Env { return rt.env }

// Logger returns a logger tagged with the step name and copy.
func (rt *Runtime) Logger() log.Logger { return rt.log }

// Context is done when the pipeline stops or the copy runs out of time.
func (rt *Runtime) Context() context.Context { return rt.ctx }

// Inputs returns the input row sets in hop order.
func (rt *Runtime) Inputs() []*pipe.RowSet {
	out := make([]*pipe.RowSet, len(rt.inputs))
	copy(out, rt.inputs)
	return out
}

// Outputs returns the output groups in hop order.
func (rt *Runtime) Outputs() []*OutputGroup {
	out := make([]*OutputGroup, len(rt.outputs))
	copy(out, rt.outputs)
	return out
}

// InputRowMeta returns the layout of the last row read.
func (rt *Runtime) InputRowMeta() *row.Meta { return rt.inputMeta }

// ErrorHandlingEnabled reports whether rejected rows go to an error hop.
func (rt *Runtime) ErrorHandlingEnabled() bool { return rt.errorOutput != nil }

// Stopped reports whether the copy should stop working.
func (rt *Runtime) Stopped() bool { return rt.ctx.Err() != nil }

// StopAll raises the stop flag of the whole pipeline.
func (rt *Runtime) StopAll() { rt.env.Stop() }

// State returns the current lifecycle state.
func (rt *Runtime) State() State { return State(atomic.LoadInt32(&rt.state)) }

func (rt *Runtime) setState(s State) { atomic.StoreInt32(&rt.state, int32(s)) }

// AddRowListener registers l for every row read and written from now on.
func (rt *Runtime) AddRowListener(l RowListener) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.listeners = append(rt.listeners, l)
}

func (rt *Runtime) notify(fn func(RowListener)) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for _, l := range rt.listeners {
		fn(l)
	}
}

// interrupted reports whether the copy has to stop and, when it ran out of
// time, the error to fail with.
func (rt *Runtime) interrupted() (bool, error) {
	if rt.ctx.Err() == nil {
		return false, nil
	}
	if rt.env.Stopped() {
		return true, nil
	}
	return true, TimeoutError{Step: rt.name, Timeout: rt.opts.Timeout.String()}
}

// GetRow returns the next row from the inputs, polling them in turn so no
// input starves another. It returns a nil row once every input is exhausted
// or the pipeline has stopped.
func (rt *Runtime) GetRow() (row.Row, error) {
	for len(rt.active) > 0 {
		if stop, err := rt.interrupted(); stop {
			return nil, err
		}

		for tries := len(rt.active); tries > 0 && len(rt.active) > 0; tries-- {
			rt.current %= len(rt.active)
			rs := rt.active[rt.current]
			r, err := rs.GetImmediate()
			switch err {
			case nil:
				rt.current++
				return rt.received(rs, r)
			case pipe.ErrEndOfStream:
				rt.removeActive(rt.current)
			default:
				rt.current++
			}
		}
		if len(rt.active) == 0 {
			break
		}

		rt.current %= len(rt.active)
		rs := rt.active[rt.current]
		wait := PollInterval
		if len(rt.active) == 1 {
			wait = 0
		}
		r, err := rs.Get(rt.ctx, wait)
		switch err {
		case nil:
			rt.current++
			return rt.received(rs, r)
		case pipe.ErrEndOfStream:
			rt.removeActive(rt.current)
		case pipe.ErrTimeout:
			rt.current++
		case pipe.ErrStopped:
		default:
			return nil, err
		}
	}
	return nil, nil
}

func (rt *Runtime) removeActive(i int) {
	rt.active = append(rt.active[:i], rt.active[i+1:]...)
}

// GetRowFrom returns the next row of one input, blocking until there is one.
// It returns a nil row once rs is exhausted or the pipeline has stopped.
func (rt *Runtime) GetRowFrom(rs *pipe.RowSet) (row.Row, error) {
	for {
		if stop, err := rt.interrupted(); stop {
			return nil, err
		}
		r, err := rs.Get(rt.ctx, 0)
		switch err {
		case nil:
			return rt.received(rs, r)
		case pipe.ErrEndOfStream:
			return nil, nil
		case pipe.ErrStopped:
		default:
			return nil, err
		}
	}
}

func (rt *Runtime) received(rs *pipe.RowSet, r row.Row) (row.Row, error) {
	meta := rs.Meta()
	if rt.env.SafeMode {
		if rt.safeMeta == nil {
			rt.safeMeta, rt.safeFrom = meta, rs.String()
		} else if rt.safeMeta != meta && !rt.safeMeta.Equal(meta) {
			return nil, SafeModeError{
				Expected: rt.safeMeta.Describe(),
				Got:      meta.Describe(),
				From:     rs.String(),
			}
		}
	}
	rt.inputMeta = meta
	rt.lastMeta, rt.lastRow = meta, r
	atomic.AddInt64(&rt.read, 1)
	rt.notify(func(l RowListener) { l.RowRead(meta, r) })
	return r, nil
}

// PutRow hands r to every output hop. Once the pipeline has stopped rows are
// silently discarded.
func (rt *Runtime) PutRow(meta *row.Meta, r row.Row) error {
	if rt.Stopped() {
		return nil
	}
	n := atomic.AddInt64(&rt.written, 1)
	rt.notify(func(l RowListener) { l.RowWritten(meta, r) })
	for _, g := range rt.outputs {
		if err := g.put(rt.ctx, meta, r); err != nil {
			if err == pipe.ErrStopped {
				return nil
			}
			return err
		}
	}
	if rt.opts.MaxRows > 0 && n >= rt.opts.MaxRows {
		atomic.StoreInt32(&rt.budget, 1)
	}
	return nil
}

// PutRowTo hands r to a single output row set.
func (rt *Runtime) PutRowTo(meta *row.Meta, r row.Row, rs *pipe.RowSet) error {
	if rt.Stopped() {
		return nil
	}
	atomic.AddInt64(&rt.written, 1)
	rt.notify(func(l RowListener) { l.RowWritten(meta, r) })
	if err := rs.Put(rt.ctx, meta, r); err != nil && err != pipe.ErrStopped {
		return err
	}
	return nil
}

// PutRowToStep hands r only to the output hop leading to step name, as
// distributed by that hop.
func (rt *Runtime) PutRowToStep(meta *row.Meta, r row.Row, name string) error {
	if rt.Stopped() {
		return nil
	}
	g := rt.Output(name)
	if g == nil {
		return fmt.Errorf("step %s has no output hop to %s", rt.name, name)
	}
	atomic.AddInt64(&rt.written, 1)
	rt.notify(func(l RowListener) { l.RowWritten(meta, r) })
	if err := g.put(rt.ctx, meta, r); err != nil && err != pipe.ErrStopped {
		return err
	}
	return nil
}

// Output returns the output hop leading to step name, nil when there is none.
func (rt *Runtime) Output(name string) *OutputGroup {
	for _, g := range rt.outputs {
		if g.To == name {
			return g
		}
	}
	return nil
}

// PutError sends a rejected row, extended with the error fields, to the error
// hop. It fails once the step rejected more rows than allowed.
func (rt *Runtime) PutError(meta *row.Meta, r row.Row, nrErrors int64, descriptions, fields, codes string) error {
	if rt.errorOutput == nil {
		return ConfigError{Step: rt.name, Reason: "no error hop to send rejected rows to"}
	}
	atomic.AddInt64(&rt.rejected, 1)

	errMeta := rt.errorRowMeta(meta)
	er := row.Allocate(errMeta.Size())
	copy(er, r[:min(len(r), meta.Size())])
	pos := meta.Size()
	eh := rt.errHandling
	for _, f := range []struct {
		name  string
		value interface{}
	}{
		{eh.NrErrorsField, nrErrors},
		{eh.DescriptionsField, descriptions},
		{eh.FieldsField, fields},
		{eh.CodesField, codes},
	} {
		if f.name != "" {
			er[pos] = f.value
			pos++
		}
	}

	rt.log.Debugf("rejected row %s, %s", meta.String(r), descriptions)
	rt.env.Emit(events.NewErrorEvent(time.Now().Unix(), rt.Path(), meta.String(r), descriptions))
	rt.notify(func(l RowListener) { l.ErrorRowWritten(errMeta, er) })
	if err := rt.errorOutput.put(rt.ctx, errMeta, er); err != nil && err != pipe.ErrStopped {
		return err
	}
	return rt.verifyRejectionRates()
}

func (rt *Runtime) errorRowMeta(meta *row.Meta) *row.Meta {
	if rt.errorMeta != nil && rt.errorMetaFor == meta {
		return rt.errorMeta
	}
	m := meta.Clone()
	eh := rt.errHandling
	if eh.NrErrorsField != "" {
		m.AddValue(row.NewValue(eh.NrErrorsField, row.TypeInteger))
	}
	for _, name := range []string{eh.DescriptionsField, eh.FieldsField, eh.CodesField} {
		if name != "" {
			m.AddValue(row.NewValue(name, row.TypeString))
		}
	}
	rt.errorMeta, rt.errorMetaFor = m, meta
	return m
}

func (rt *Runtime) verifyRejectionRates() error {
	eh := rt.errHandling
	rejected := atomic.LoadInt64(&rt.rejected)
	read := atomic.LoadInt64(&rt.read)
	if eh.MaxErrors > 0 && rejected > eh.MaxErrors {
		return RejectionError{Rejected: rejected, Read: read, Limit: fmt.Sprintf("max_errors %d", eh.MaxErrors)}
	}
	if eh.MaxPercentErrors > 0 && rejected > 0 && read > 0 && (eh.MinPercentRows <= 0 || read >= eh.MinPercentRows) {
		pct := int(math.Ceil(100 * float64(rejected) / float64(read)))
		if pct > eh.MaxPercentErrors {
			return RejectionError{Rejected: rejected, Read: read, Limit: fmt.Sprintf("max_percent_errors %d%%", eh.MaxPercentErrors)}
		}
	}
	return nil
}

// SetOutputDone tells every output and error hop that no more rows follow.
func (rt *Runtime) SetOutputDone() {
	rt.doneOnce.Do(func() {
		for _, g := range rt.outputs {
			g.setDone()
		}
		if rt.errorOutput != nil {
			rt.errorOutput.setDone()
		}
	})
}

// IncrementInput counts rows read from outside the pipeline.
func (rt *Runtime) IncrementInput(n int64) { atomic.AddInt64(&rt.input, n) }

// IncrementOutput counts rows written outside the pipeline.
func (rt *Runtime) IncrementOutput(n int64) { atomic.AddInt64(&rt.output, n) }

// LinesRead returns the number of rows read from the inputs.
func (rt *Runtime) LinesRead() int64 { return atomic.LoadInt64(&rt.read) }

// LinesWritten returns the number of rows handed to the outputs.
func (rt *Runtime) LinesWritten() int64 { return atomic.LoadInt64(&rt.written) }

// LinesRejected returns the number of rows sent to the error hop.
func (rt *Runtime) LinesRejected() int64 { return atomic.LoadInt64(&rt.rejected) }

// Errors returns the number of fatal errors, 0 or 1.
func (rt *Runtime) Errors() int64 { return atomic.LoadInt64(&rt.errs) }

func (rt *Runtime) addMessage(msg string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	limit := rt.env.ReportErrors
	if limit <= 0 {
		limit = DefaultReportErrors
	}
	if len(rt.messages) < limit {
		rt.messages = append(rt.messages, msg)
	}
}

// Status returns a snapshot of the copy's counters.
func (rt *Runtime) Status() Status {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	s := Status{
		Step:     rt.name,
		Type:     rt.opts.Type,
		Copy:     rt.copy,
		State:    rt.State(),
		Read:     atomic.LoadInt64(&rt.read),
		Written:  atomic.LoadInt64(&rt.written),
		Input:    atomic.LoadInt64(&rt.input),
		Output:   atomic.LoadInt64(&rt.output),
		Rejected: atomic.LoadInt64(&rt.rejected),
		Errors:   atomic.LoadInt64(&rt.errs),
		Messages: append([]string(nil), rt.messages...),
	}
	switch {
	case rt.started.IsZero():
	case rt.finished.IsZero():
		s.Elapsed = time.Since(rt.started)
	default:
		s.Elapsed = rt.finished.Sub(rt.started)
	}
	return s
}

// Counters returns the counters carried by metrics events.
func (rt *Runtime) Counters() events.Counters {
	return events.Counters{
		Read:     atomic.LoadInt64(&rt.read),
		Written:  atomic.LoadInt64(&rt.written),
		Rejected: atomic.LoadInt64(&rt.rejected),
		Errors:   atomic.LoadInt64(&rt.errs),
	}
}

// Init initializes s for this copy. Any error is returned as a ConfigError.
func (rt *Runtime) Init(s Step) error {
	rt.active = append([]*pipe.RowSet(nil), rt.inputs...)
	if err := s.Init(rt); err != nil {
		var cerr ConfigError
		if !errors.As(err, &cerr) {
			err = ConfigError{Step: rt.name, Reason: err.Error()}
		}
		rt.setState(Error)
		atomic.AddInt64(&rt.errs, 1)
		rt.addMessage(err.Error())
		rt.log.Errorf("init failed, %s", err)
		return err
	}
	return nil
}

// Dispose releases what s acquired. It runs s.Dispose once however often it
// is called.
func (rt *Runtime) Dispose(s Step) error {
	rt.disposeOnce.Do(func() {
		rt.disposeErr = s.Dispose(rt)
		if rt.disposeErr != nil {
			rt.log.Errorf("dispose failed, %s", rt.disposeErr)
		}
	})
	return rt.disposeErr
}

// Run drives s until it is done, fails or the pipeline stops. Outputs are
// always marked done and s is always disposed before Run returns. A failure
// stops the whole pipeline.
func (rt *Runtime) Run(s Step) (err error) {
	if rt.opts.Timeout > 0 {
		var cancel context.CancelFunc
		rt.ctx, cancel = context.WithTimeout(rt.env.Context(), rt.opts.Timeout)
		defer cancel()
	}
	if len(rt.active) == 0 && len(rt.inputs) > 0 {
		rt.active = append([]*pipe.RowSet(nil), rt.inputs...)
	}

	rt.mu.Lock()
	rt.started = time.Now()
	rt.mu.Unlock()
	rt.setState(Running)
	rt.log.Debugln("running")

	defer func() {
		rt.SetOutputDone()
		stopped, _ := rt.interrupted()
		if err == nil && !stopped {
			rt.drain()
		}
		if derr := rt.Dispose(s); derr != nil && err == nil {
			err = derr
		}

		rt.mu.Lock()
		rt.finished = time.Now()
		rt.mu.Unlock()

		if err != nil {
			rt.fail(err)
		} else {
			rt.setState(Done)
			rt.log.With("read", rt.LinesRead()).With("written", rt.LinesWritten()).Infoln("finished")
		}
		rt.env.Emit(events.NewMetricsEvent(time.Now().Unix(), rt.Path(), rt.Counters()))
	}()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in step %s: %v", rt.name, p)
		}
	}()

	for {
		if stop, ierr := rt.interrupted(); stop {
			if ierr != nil {
				return ierr
			}
			rt.setState(Stopping)
			return nil
		}

		more, perr := s.ProcessRow(rt)
		if perr != nil {
			if herr := rt.handleError(perr); herr != nil {
				return herr
			}
			continue
		}
		if !more {
			return nil
		}
		if atomic.LoadInt32(&rt.budget) == 1 {
			rt.log.Infof("wrote %d rows, finishing", rt.opts.MaxRows)
			return nil
		}
	}
}

// handleError redirects a rejected row to the error hop and returns the
// errors which fail the step.
func (rt *Runtime) handleError(err error) error {
	var rerr *RowError
	if !errors.As(err, &rerr) || rt.errorOutput == nil {
		return err
	}
	meta, r := rerr.Meta, rerr.Row
	if meta == nil {
		meta, r = rt.lastMeta, rt.lastRow
	}
	if meta == nil {
		return err
	}
	return rt.PutError(meta, r, 1, rerr.Message, rerr.Field, rerr.Code)
}

// drain discards what is left on the inputs of a copy finishing early so its
// producers are not blocked forever.
func (rt *Runtime) drain() {
	for _, rs := range rt.active {
		for {
			if _, err := rs.Get(rt.ctx, 0); err != nil {
				break
			}
		}
	}
	rt.active = nil
}

func (rt *Runtime) fail(err error) {
	rt.setState(Error)
	atomic.AddInt64(&rt.errs, 1)
	rt.addMessage(err.Error())
	rt.log.Errorf("failed, %s", err)
	rt.env.Emit(events.NewErrorEvent(time.Now().Unix(), rt.Path(), nil, err.Error()))
	rt.env.Stop()
}
