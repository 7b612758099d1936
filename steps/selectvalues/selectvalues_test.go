// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package selectvalues

import (
	"reflect"
	"testing"

	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

func TestConfigure(t *testing.T) {
	s, err := step.GetStep("select", step.Config{
		"fields": []interface{}{map[string]interface{}{"name": "id", "rename": "key"}},
		"remove": []interface{}{"name"},
	})
	if err != nil {
		t.Fatalf("unexpected GetStep error, %s", err)
	}
	expected := &Select{Fields: []Field{{Name: "id", Rename: "key"}}, Remove: []string{"name"}}
	if !reflect.DeepEqual(s, expected) {
		t.Errorf("misconfigured step, expected %+v, got %+v", expected, s)
	}
}

var customers = row.NewMeta(
	row.NewValue("id", row.TypeInteger),
	row.NewValue("name", row.TypeString),
	row.NewValue("city", row.TypeString),
)

var selectTests = []struct {
	name   string
	sel    *Select
	fields []string
	out    row.Row
}{
	{
		"pick",
		&Select{Fields: []Field{{Name: "city"}, {Name: "id"}}},
		[]string{"city", "id"},
		row.Row{"Utrecht", int64(1)},
	},
	{
		"pick renamed",
		&Select{Fields: []Field{{Name: "NAME", Rename: "customer"}}},
		[]string{"customer"},
		row.Row{"alice"},
	},
	{
		"pick twice",
		&Select{Fields: []Field{{Name: "id"}, {Name: "id"}}},
		[]string{"id", "id_1"},
		row.Row{int64(1), int64(1)},
	},
	{
		"remove",
		&Select{Remove: []string{"name"}},
		[]string{"id", "city"},
		row.Row{int64(1), "Utrecht"},
	},
	{
		"rename",
		&Select{SwapMap: map[string]string{"id": "customer_id"}},
		[]string{"customer_id", "name", "city"},
		row.Row{int64(1), "alice", "Utrecht"},
	},
}

func TestSelect(t *testing.T) {
	for _, st := range selectTests {
		in := step.Input{Meta: customers, Rows: []row.Row{{int64(1), "alice", "Utrecht"}}}
		out, err := step.RunStep(st.sel, step.Options{}, in)
		if err != nil {
			t.Fatalf("[%s] unexpected error, %s", st.name, err)
		}
		if got := out.Meta.FieldNames(); !reflect.DeepEqual(got, st.fields) {
			t.Errorf("[%s] wrong fields, expected %v, got %v", st.name, st.fields, got)
		}
		if len(out.Rows) != 1 || !reflect.DeepEqual(out.Rows[0], st.out) {
			t.Errorf("[%s] wrong row, expected %v, got %v", st.name, st.out, out.Rows)
		}
	}
	if customers.Size() != 3 || customers.Value(0).Name != "id" {
		t.Errorf("input layout changed, got %s", customers.Describe())
	}
}

func TestSelectErrors(t *testing.T) {
	in := step.Input{Meta: customers, Rows: []row.Row{{int64(1), "alice", "Utrecht"}}}
	for _, sel := range []*Select{
		{Fields: []Field{{Name: "zip"}}},
		{Remove: []string{"zip"}},
	} {
		if _, err := step.RunStep(sel, step.Options{}, in); err == nil {
			t.Errorf("expected an error for %+v", sel)
		}
	}
	if _, err := step.RunStep(&Select{}, step.Options{}, in); err == nil {
		t.Errorf("expected an init error for an empty configuration")
	}
}
