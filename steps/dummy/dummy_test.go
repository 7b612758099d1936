// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dummy

import (
	"reflect"
	"testing"

	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

func TestPassThrough(t *testing.T) {
	meta := row.NewMeta(row.NewValue("n", row.TypeInteger))
	in := []row.Row{{int64(1)}, {int64(2)}, {nil}}
	out, err := step.RunStep(&Dummy{}, step.Options{}, step.Input{Meta: meta, Rows: in})
	if err != nil {
		t.Fatalf("unexpected error, %s", err)
	}
	if !reflect.DeepEqual(out.Rows, in) {
		t.Errorf("wrong rows, expected %v, got %v", in, out.Rows)
	}
	if out.Meta == meta || !out.Meta.Equal(meta) {
		t.Errorf("layout not passed through as a copy, got %s", out.Meta.Describe())
	}
}

func TestNoInput(t *testing.T) {
	out, err := step.RunStep(&Dummy{}, step.Options{})
	if err != nil {
		t.Fatalf("unexpected error, %s", err)
	}
	if len(out.Rows) != 0 {
		t.Errorf("expected no rows, got %v", out.Rows)
	}
}
