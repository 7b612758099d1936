// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package selectvalues provides a step picking, renaming and removing the
// fields of its rows.
package selectvalues

import (
	"strings"

	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

const (
	sampleConfig = `    type: select
    config:
      fields:
        - name: id
        - name: name
          rename: customer
      remove: []
      rename:
        id: customer_id`

	description = "picks, renames and removes fields"
)

var (
	_ step.Step        = &Select{}
	_ step.Describable = &Select{}
)

func init() {
	step.Add("select", func() step.Step {
		return &Select{}
	})
}

// Field is a field to pick, optionally under a new name.
type Field struct {
	Name   string `json:"name"`
	Rename string `json:"rename"`
}

// Select builds the output layout in three passes: Fields picks, in order,
// then Remove drops and SwapMap renames.
type Select struct {
	Fields  []Field           `json:"fields" doc:"the fields to keep, in order, all when empty"`
	Remove  []string          `json:"remove" doc:"the fields to drop"`
	SwapMap map[string]string `json:"rename" doc:"old name to new name"`

	in    *row.Meta
	out   *row.Meta
	index []int
}

// Description implements step.Describable.
func (s *Select) Description() string { return description }

// SampleConfig implements step.Describable.
func (s *Select) SampleConfig() string { return sampleConfig }

// Init implements step.Step.
func (s *Select) Init(rt *step.Runtime) error {
	if len(s.Fields) == 0 && len(s.Remove) == 0 && len(s.SwapMap) == 0 {
		return step.ConfigError{Step: rt.Name(), Reason: "nothing to select, remove or rename"}
	}
	return nil
}

// ProcessRow implements step.Step.
func (s *Select) ProcessRow(rt *step.Runtime) (bool, error) {
	r, err := rt.GetRow()
	if err != nil || r == nil {
		rt.SetOutputDone()
		return false, err
	}
	if meta := rt.InputRowMeta(); meta != s.in {
		if err := s.layout(meta); err != nil {
			return false, err
		}
	}
	out := row.Allocate(s.out.Size())
	for i, from := range s.index {
		if from < len(r) {
			out[i] = r[from]
		}
	}
	return true, rt.PutRow(s.out, out)
}

// layout computes the output layout of in and where each output field
// comes from.
func (s *Select) layout(in *row.Meta) error {
	type picked struct {
		v    *row.Value
		from int
	}
	var fields []picked
	if len(s.Fields) == 0 {
		for i, v := range in.Values() {
			fields = append(fields, picked{v.Clone(), i})
		}
	}
	for _, f := range s.Fields {
		i := in.IndexOfValue(f.Name)
		if i < 0 {
			return row.NoSuchValueError{Name: f.Name}
		}
		v := in.Value(i).Clone()
		if f.Rename != "" {
			v.Name = f.Rename
		}
		fields = append(fields, picked{v, i})
	}

	for _, name := range s.Remove {
		found := false
		for i := 0; i < len(fields); i++ {
			if strings.EqualFold(fields[i].v.Name, name) {
				fields = append(fields[:i], fields[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return row.NoSuchValueError{Name: name}
		}
	}

	out := row.NewMeta()
	s.index = s.index[:0]
	for _, f := range fields {
		if newName, ok := s.SwapMap[f.v.Name]; ok {
			f.v.Name = newName
		}
		out.AddValue(f.v)
		s.index = append(s.index, f.from)
	}
	s.in, s.out = in, out
	return nil
}

// Dispose implements step.Step.
func (s *Select) Dispose(rt *step.Runtime) error { return nil }
