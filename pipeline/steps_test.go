// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
	"github.com/compose/rowflow/steps/bulkload"
	"github.com/compose/rowflow/steps/dummy"
	"github.com/compose/rowflow/steps/generator"
	"github.com/compose/rowflow/steps/merge"
	"github.com/compose/rowflow/steps/sortrows"
)

func keys(values ...string) func() step.Step {
	return func() step.Step {
		g := &generator.Generator{Fields: []*row.Value{row.NewValue("k", row.TypeInteger)}}
		for _, v := range values {
			g.Rows = append(g.Rows, []string{v})
		}
		return g
	}
}

func TestMergeConcurrentSources(t *testing.T) {
	h := newHarness(map[string]func() step.Step{
		"a":     keys("1", "4", "7"),
		"b":     keys("2", "3"),
		"c":     keys("5", "6", "8"),
		"merge": func() step.Step { return &merge.Merge{Keys: sortrows.Keys{{Field: "k"}}} },
		"pass":  func() step.Step { return &dummy.Dummy{} },
		"sink":  newMock,
	})
	desc := Description{
		Name: "merge",
		Steps: []StepDef{
			{Name: "a"}, {Name: "b"}, {Name: "c"},
			{Name: "merge"}, {Name: "pass"}, {Name: "sink"},
		},
		Hops: []Hop{
			{From: "a", To: "merge"},
			{From: "b", To: "merge"},
			{From: "c", To: "merge"},
			{From: "merge", To: "pass"},
			{From: "pass", To: "sink"},
		},
		RowSetSize: 1,
	}
	_, result, err := run(t, desc, h)
	if err != nil {
		t.Fatalf("unexpected Run error, %s", err)
	}
	if result.Failed() {
		t.Errorf("expected a successful run, got %+v", result)
	}
	if got := h.received("sink", 0); !reflect.DeepEqual(got, []int64{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("wrong merged rows, expected [1 2 3 4 5 6 7 8], got %v", got)
	}
}

func TestBulkLoadFailureStopsPipeline(t *testing.T) {
	boom := errors.New("disk full")
	loader := &adaptor.Mock{FailAfter: 3, Err: boom}
	h := newHarness(map[string]func() step.Step{
		"source": func() step.Step {
			return &generator.Generator{
				Fields: []*row.Value{row.NewValue("k", row.TypeInteger)},
				Rows:   [][]string{{"1"}, {"2"}, {"3"}},
				Limit:  5000,
			}
		},
		"load": func() step.Step { return bulkload.New(loader, "numbers", adaptor.CSV) },
		"pass": func() step.Step { return &dummy.Dummy{} },
		"sink": newMock,
	})
	desc := Description{
		Name:  "bulkload",
		Steps: []StepDef{{Name: "source"}, {Name: "load"}, {Name: "pass", Copies: 2}, {Name: "sink"}},
		Hops: []Hop{
			{From: "source", To: "load"},
			{From: "load", To: "pass"},
			{From: "pass", To: "sink"},
		},
	}
	p, result, err := run(t, desc, h)
	if !errors.Is(err, boom) {
		t.Errorf("wrong error, expected %s, got %v", boom, err)
	}
	if !result.Failed() {
		t.Errorf("expected a failed result, got %+v", result)
	}
	if state := p.Runtimes("load")[0].State(); state != step.Error {
		t.Errorf("wrong load state, expected %s, got %s", step.Error, state)
	}
	for _, name := range []string{"pass", "sink"} {
		for i, rt := range p.Runtimes(name) {
			if state := rt.State(); state != step.Done {
				t.Errorf("wrong %s copy %d state, expected %s, got %s", name, i, step.Done, state)
			}
		}
	}
	if loader.Closes() != 1 {
		t.Errorf("loader not closed, got %d closes", loader.Closes())
	}
}
