// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

import (
	"context"
	"sync"

	"github.com/compose/rowflow/pipe"
	"github.com/compose/rowflow/row"
)

var (
	_ Step     = &Mock{}
	_ Declarer = &Mock{}
)

// Mock passes every row through and can be told to fail. It is meant for
// tests of the runtime and the pipeline.
type Mock struct {
	// InitErr is returned from Init.
	InitErr error
	// FailAt makes the FailAt-th row read (1 based) fail with Err, or with a
	// RowError when Err is nil.
	FailAt int64
	Err    error
	// Decl overrides DefaultChannels when set.
	Decl *Channels

	mu       sync.Mutex
	Inits    int
	Disposes int
	Rows     []row.Row
}

// Channels implements Declarer.
func (m *Mock) Channels() Channels {
	if m.Decl != nil {
		return *m.Decl
	}
	return Channels{MinInputs: 0, MaxInputs: -1, Outputs: true, ErrorHandling: true}
}

// Init implements Step.
func (m *Mock) Init(rt *Runtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inits++
	return m.InitErr
}

// ProcessRow implements Step.
func (m *Mock) ProcessRow(rt *Runtime) (bool, error) {
	r, err := rt.GetRow()
	if err != nil {
		return false, err
	}
	if r == nil {
		rt.SetOutputDone()
		return false, nil
	}
	m.mu.Lock()
	m.Rows = append(m.Rows, r)
	m.mu.Unlock()

	if m.FailAt > 0 && rt.LinesRead() == m.FailAt {
		if m.Err != nil {
			return false, m.Err
		}
		return true, NewRowError("MOCK001", "", "mock failure")
	}
	return true, rt.PutRow(rt.InputRowMeta(), r)
}

// Dispose implements Step.
func (m *Mock) Dispose(rt *Runtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disposes++
	return nil
}

// Received returns the rows read so far.
func (m *Mock) Received() []row.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]row.Row(nil), m.Rows...)
}

// Input is the content of one input row set given to RunStep.
type Input struct {
	Meta *row.Meta
	Rows []row.Row
}

// Output is what a step run by RunStep wrote.
type Output struct {
	Meta    *row.Meta
	Rows    []row.Row
	Errors  []row.Row
	Runtime *Runtime
}

// RunStep runs s as the single copy of a step named "test", reading from one
// row set per input and writing to an output and an error hop. It returns
// once s finished, with the error of Init or Run.
func RunStep(s Step, opts Options, inputs ...Input) (*Output, error) {
	if opts.Name == "" {
		opts.Name = "test"
	}
	env := NewEnv(context.Background())
	rt := NewRuntime(env, opts)
	total := 1
	for i, in := range inputs {
		total += len(in.Rows)
		rs := pipe.New("input", i, opts.Name, 0, len(in.Rows)+1)
		for _, r := range in.Rows {
			rs.Put(env.Context(), in.Meta, r)
		}
		rs.SetDone()
		rt.AddInput(rs)
	}
	out := pipe.New(opts.Name, 0, "output", 0, pipe.DefaultSize)
	rt.AddOutput(&OutputGroup{To: "output", RowSets: []*pipe.RowSet{out}})
	if opts.ErrorHandling != nil {
		errs := pipe.New(opts.Name, 0, "errors", 0, total)
		rt.SetErrorOutput(&OutputGroup{To: "errors", RowSets: []*pipe.RowSet{errs}})
	}

	o := &Output{Runtime: rt}
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for {
			r, err := out.Get(context.Background(), 0)
			if err != nil {
				return
			}
			o.Rows = append(o.Rows, r)
		}
	}()

	err := rt.Init(s)
	if err != nil {
		rt.Dispose(s)
		out.SetDone()
	} else {
		err = rt.Run(s)
	}
	<-collected
	o.Meta = out.Meta()
	if g := rt.errorOutput; g != nil {
		for {
			r, gerr := g.RowSets[0].GetImmediate()
			if gerr != nil {
				break
			}
			o.Errors = append(o.Errors, r)
		}
	}
	return o, err
}
