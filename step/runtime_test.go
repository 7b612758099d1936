// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/partition"
	"github.com/compose/rowflow/pipe"
	"github.com/compose/rowflow/row"
)

var intMeta = row.NewMeta(row.NewValue("n", row.TypeInteger))

func testEnv() *Env {
	env := NewEnv(context.Background())
	env.Logger = log.NewNopLogger()
	return env
}

func fill(t *testing.T, rs *pipe.RowSet, values ...int64) {
	for _, v := range values {
		if err := rs.Put(context.Background(), intMeta, row.Row{v}); err != nil {
			t.Fatalf("unexpected Put error, %s", err)
		}
	}
	rs.SetDone()
}

func drainRowSet(t *testing.T, rs *pipe.RowSet) []int64 {
	var out []int64
	for {
		r, err := rs.Get(context.Background(), time.Second)
		if err == pipe.ErrEndOfStream {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected Get error from %s, %s", rs, err)
		}
		out = append(out, r[0].(int64))
	}
}

func TestGetRowPollsInputsInTurn(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "sink"})
	a := pipe.New("a", 0, "sink", 0, 10)
	b := pipe.New("b", 0, "sink", 0, 10)
	fill(t, a, 1, 3, 5)
	fill(t, b, 2, 4)
	rt.AddInput(a)
	rt.AddInput(b)
	if err := rt.Init(&Mock{}); err != nil {
		t.Fatalf("unexpected Init error, %s", err)
	}

	var got []int64
	for {
		r, err := rt.GetRow()
		if err != nil {
			t.Fatalf("unexpected GetRow error, %s", err)
		}
		if r == nil {
			break
		}
		got = append(got, r[0].(int64))
	}
	expected := []int64{1, 2, 3, 4, 5}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("wrong rows, expected %v, got %v", expected, got)
	}
	if rt.LinesRead() != 5 {
		t.Errorf("wrong read count, expected 5, got %d", rt.LinesRead())
	}
}

func TestGetRowDoesNotStarveOnEmptyInput(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "sink"})
	slow := pipe.New("slow", 0, "sink", 0, 10)
	fast := pipe.New("fast", 0, "sink", 0, 10)
	fill(t, fast, 1, 2, 3)
	rt.AddInput(slow)
	rt.AddInput(fast)
	rt.Init(&Mock{})

	for i := 0; i < 3; i++ {
		r, err := rt.GetRow()
		if err != nil || r == nil {
			t.Fatalf("expected a row from the fast input, got %v, %v", r, err)
		}
	}
	slow.SetDone()
	r, err := rt.GetRow()
	if err != nil || r != nil {
		t.Errorf("expected exhaustion, got %v, %v", r, err)
	}
}

func TestOutputDistribution(t *testing.T) {
	data := []struct {
		name         string
		distribution Distribution
		expected     [][]int64
	}{
		{"round-robin", RoundRobin, [][]int64{{0, 3}, {1, 4}, {2, 5}}},
		{"broadcast", Broadcast, [][]int64{{0, 1, 2, 3, 4, 5}, {0, 1, 2, 3, 4, 5}, {0, 1, 2, 3, 4, 5}}},
		{"partition", Partitioned, [][]int64{{0, 3}, {1, 4}, {2, 5}}},
	}
	for _, d := range data {
		env := testEnv()
		rt := NewRuntime(env, Options{Name: "source"})
		g := &OutputGroup{To: "sink", Distribution: d.distribution, Partitioner: partition.ModPartitioner{Field: "n"}}
		for i := 0; i < 3; i++ {
			g.RowSets = append(g.RowSets, pipe.New("source", 0, "sink", i, 10))
		}
		rt.AddOutput(g)
		for i := int64(0); i < 6; i++ {
			if err := rt.PutRow(intMeta, row.Row{i}); err != nil {
				t.Fatalf("[%s] unexpected PutRow error, %s", d.name, err)
			}
		}
		rt.SetOutputDone()
		for i, rs := range g.RowSets {
			if got := drainRowSet(t, rs); !reflect.DeepEqual(got, d.expected[i]) {
				t.Errorf("[%s] wrong rows on copy %d, expected %v, got %v", d.name, i, d.expected[i], got)
			}
		}
	}
}

func TestPutErrorExtendsRow(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "filter", ErrorHandling: &ErrorHandling{}})
	errs := pipe.New("filter", 0, "errors", 0, 10)
	rt.SetErrorOutput(&OutputGroup{To: "errors", RowSets: []*pipe.RowSet{errs}})

	if err := rt.PutError(intMeta, row.Row{int64(5)}, 1, "bad value", "n", "F001"); err != nil {
		t.Fatalf("unexpected PutError error, %s", err)
	}
	r, err := errs.Get(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected Get error, %s", err)
	}
	expected := row.Row{int64(5), int64(1), "bad value", "n", "F001"}
	if !reflect.DeepEqual(r, expected) {
		t.Errorf("wrong error row, expected %v, got %v", expected, r)
	}
	names := errs.Meta().FieldNames()
	expectedNames := []string{"n", DefaultNrErrorsField, DefaultDescriptionsField, DefaultFieldsField, DefaultCodesField}
	if !reflect.DeepEqual(names, expectedNames) {
		t.Errorf("wrong error layout, expected %v, got %v", expectedNames, names)
	}
	if intMeta.Size() != 1 {
		t.Errorf("error layout changed the input layout, size %d", intMeta.Size())
	}
	if rt.LinesRejected() != 1 {
		t.Errorf("wrong rejected count, expected 1, got %d", rt.LinesRejected())
	}
}

func TestPutErrorWithoutErrorHop(t *testing.T) {
	rt := NewRuntime(testEnv(), Options{Name: "filter"})
	err := rt.PutError(intMeta, row.Row{int64(1)}, 1, "bad", "", "")
	if _, ok := err.(ConfigError); !ok {
		t.Errorf("wrong error, expected ConfigError, got %v", err)
	}
}

var rejectionTests = []struct {
	name     string
	eh       ErrorHandling
	read     int64
	rejects  int
	expected bool
}{
	{"no limits", ErrorHandling{}, 10, 5, false},
	{"max errors reached", ErrorHandling{MaxErrors: 2}, 10, 2, false},
	{"max errors exceeded", ErrorHandling{MaxErrors: 2}, 10, 3, true},
	{"percent below", ErrorHandling{MaxPercentErrors: 50}, 10, 5, false},
	{"percent above", ErrorHandling{MaxPercentErrors: 20}, 10, 3, true},
	{"percent before min rows", ErrorHandling{MaxPercentErrors: 20, MinPercentRows: 100}, 10, 3, false},
}

func TestRejectionLimits(t *testing.T) {
	for _, rt := range rejectionTests {
		eh := rt.eh
		r := NewRuntime(testEnv(), Options{Name: "filter", ErrorHandling: &eh})
		r.SetErrorOutput(&OutputGroup{To: "errors", RowSets: []*pipe.RowSet{pipe.New("filter", 0, "errors", 0, 100)}})
		r.read = rt.read

		var err error
		for i := 0; i < rt.rejects && err == nil; i++ {
			err = r.PutError(intMeta, row.Row{int64(i)}, 1, "bad", "", "")
		}
		_, isRejection := err.(RejectionError)
		if isRejection != rt.expected {
			t.Errorf("[%s] wrong result, expected rejection error %v, got %v", rt.name, rt.expected, err)
		}
	}
}

func TestRunRedirectsRowErrors(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "mock", ErrorHandling: &ErrorHandling{}})
	in := pipe.New("source", 0, "mock", 0, 20)
	out := pipe.New("mock", 0, "sink", 0, 20)
	errs := pipe.New("mock", 0, "errors", 0, 20)
	fill(t, in, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	rt.AddInput(in)
	rt.AddOutput(&OutputGroup{To: "sink", RowSets: []*pipe.RowSet{out}})
	rt.SetErrorOutput(&OutputGroup{To: "errors", RowSets: []*pipe.RowSet{errs}})

	m := &Mock{FailAt: 5}
	if err := rt.Init(m); err != nil {
		t.Fatalf("unexpected Init error, %s", err)
	}
	if err := rt.Run(m); err != nil {
		t.Fatalf("unexpected Run error, %s", err)
	}

	if got := drainRowSet(t, out); !reflect.DeepEqual(got, []int64{1, 2, 3, 4, 6, 7, 8, 9, 10}) {
		t.Errorf("wrong output rows, got %v", got)
	}
	if got := drainRowSet(t, errs); !reflect.DeepEqual(got, []int64{5}) {
		t.Errorf("wrong error rows, expected [5], got %v", got)
	}
	if rt.State() != Done {
		t.Errorf("wrong state, expected %s, got %s", Done, rt.State())
	}
	if m.Disposes != 1 {
		t.Errorf("wrong dispose count, expected 1, got %d", m.Disposes)
	}
	if env.Stopped() {
		t.Errorf("a rejected row stopped the pipeline")
	}
}

func TestRunFatalError(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "mock"})
	in := pipe.New("source", 0, "mock", 0, 20)
	out := pipe.New("mock", 0, "sink", 0, 20)
	fill(t, in, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	rt.AddInput(in)
	rt.AddOutput(&OutputGroup{To: "sink", RowSets: []*pipe.RowSet{out}})

	m := &Mock{FailAt: 5}
	rt.Init(m)
	err := rt.Run(m)
	if _, ok := err.(*RowError); !ok {
		t.Fatalf("wrong error, expected *RowError, got %v", err)
	}
	if got := drainRowSet(t, out); len(got) > 4 {
		t.Errorf("too many rows emitted, expected at most 4, got %v", got)
	}
	if rt.State() != Error {
		t.Errorf("wrong state, expected %s, got %s", Error, rt.State())
	}
	if !env.Stopped() {
		t.Errorf("expected the pipeline to be stopped")
	}
	if m.Disposes != 1 {
		t.Errorf("wrong dispose count, expected 1, got %d", m.Disposes)
	}
	st := rt.Status()
	if st.Errors != 1 || len(st.Messages) != 1 {
		t.Errorf("wrong status, expected 1 error and 1 message, got %+v", st)
	}
}

type panicStep struct{ Mock }

func (p *panicStep) ProcessRow(rt *Runtime) (bool, error) {
	panic("boom")
}

func TestRunRecoversPanics(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "panic"})
	s := &panicStep{}
	rt.Init(s)
	if err := rt.Run(s); err == nil {
		t.Fatalf("expected an error from a panicking step")
	}
	if s.Disposes != 1 {
		t.Errorf("wrong dispose count, expected 1, got %d", s.Disposes)
	}
	if rt.State() != Error {
		t.Errorf("wrong state, expected %s, got %s", Error, rt.State())
	}
}

func TestInitErrorIsConfigError(t *testing.T) {
	rt := NewRuntime(testEnv(), Options{Name: "mock"})
	err := rt.Init(&Mock{InitErr: errors.New("missing field")})
	cerr, ok := err.(ConfigError)
	if !ok {
		t.Fatalf("wrong error, expected ConfigError, got %v", err)
	}
	if cerr.Step != "mock" {
		t.Errorf("wrong step, expected mock, got %s", cerr.Step)
	}
}

func TestSafeMode(t *testing.T) {
	env := testEnv()
	env.SafeMode = true
	rt := NewRuntime(env, Options{Name: "sink"})
	a := pipe.New("a", 0, "sink", 0, 10)
	b := pipe.New("b", 0, "sink", 0, 10)
	fill(t, a, 1)
	strMeta := row.NewMeta(row.NewValue("s", row.TypeString))
	b.Put(context.Background(), strMeta, row.Row{"x"})
	b.SetDone()
	rt.AddInput(a)
	rt.AddInput(b)
	rt.Init(&Mock{})

	var err error
	for i := 0; i < 3 && err == nil; i++ {
		_, err = rt.GetRow()
	}
	if _, ok := err.(SafeModeError); !ok {
		t.Errorf("wrong error, expected SafeModeError, got %v", err)
	}
}

func TestMaxRowsFinishesNormally(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "mock", MaxRows: 3})
	in := pipe.New("source", 0, "mock", 0, 2)
	out := pipe.New("mock", 0, "sink", 0, 10)
	rt.AddInput(in)
	rt.AddOutput(&OutputGroup{To: "sink", RowSets: []*pipe.RowSet{out}})

	// more rows than the input holds, the producer only finishes when the
	// step drains what it does not read
	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		for i := int64(1); i <= 10; i++ {
			in.Put(context.Background(), intMeta, row.Row{i})
		}
		in.SetDone()
	}()

	m := &Mock{}
	rt.Init(m)
	if err := rt.Run(m); err != nil {
		t.Fatalf("unexpected Run error, %s", err)
	}
	select {
	case <-producerDone:
	case <-time.After(time.Second):
		t.Fatalf("producer still blocked after the step finished")
	}
	if got := drainRowSet(t, out); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("wrong rows, expected [1 2 3], got %v", got)
	}
	if rt.State() != Done {
		t.Errorf("wrong state, expected %s, got %s", Done, rt.State())
	}
}

func TestTimeoutFails(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "mock", Timeout: 20 * time.Millisecond})
	rt.AddInput(pipe.New("source", 0, "mock", 0, 1))
	m := &Mock{}
	rt.Init(m)
	err := rt.Run(m)
	if _, ok := err.(TimeoutError); !ok {
		t.Fatalf("wrong error, expected TimeoutError, got %v", err)
	}
	if !env.Stopped() {
		t.Errorf("expected the pipeline to be stopped")
	}
}

func TestStopEndsRun(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "mock"})
	rt.AddInput(pipe.New("source", 0, "mock", 0, 1))
	m := &Mock{}
	rt.Init(m)

	result := make(chan error, 1)
	go func() { result <- rt.Run(m) }()
	time.Sleep(20 * time.Millisecond)
	env.Stop()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("unexpected Run error, %s", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run still blocked after stop")
	}
	if rt.State() != Done {
		t.Errorf("wrong state, expected %s, got %s", Done, rt.State())
	}
	if env.Runtime("mock", 0) != rt {
		t.Errorf("runtime not registered with its environment")
	}
}

type countingListener struct {
	read, written, errors int
}

func (c *countingListener) RowRead(*row.Meta, row.Row)         { c.read++ }
func (c *countingListener) RowWritten(*row.Meta, row.Row)      { c.written++ }
func (c *countingListener) ErrorRowWritten(*row.Meta, row.Row) { c.errors++ }

func TestRowListener(t *testing.T) {
	env := testEnv()
	rt := NewRuntime(env, Options{Name: "mock", ErrorHandling: &ErrorHandling{}})
	in := pipe.New("source", 0, "mock", 0, 10)
	fill(t, in, 1, 2, 3)
	rt.AddInput(in)
	rt.AddOutput(&OutputGroup{To: "sink", RowSets: []*pipe.RowSet{pipe.New("mock", 0, "sink", 0, 10)}})
	rt.SetErrorOutput(&OutputGroup{To: "errors", RowSets: []*pipe.RowSet{pipe.New("mock", 0, "errors", 0, 10)}})

	l := &countingListener{}
	rt.AddRowListener(l)
	m := &Mock{FailAt: 2}
	rt.Init(m)
	if err := rt.Run(m); err != nil {
		t.Fatalf("unexpected Run error, %s", err)
	}
	if l.read != 3 || l.written != 2 || l.errors != 1 {
		t.Errorf("wrong listener counts, expected 3/2/1, got %d/%d/%d", l.read, l.written, l.errors)
	}
}
