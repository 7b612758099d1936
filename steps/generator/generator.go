// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package generator provides a source step writing literal rows.
package generator

import (
	"fmt"

	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

const (
	sampleConfig = `    type: generator
    config:
      fields:
        - name: id
          type: Integer
        - name: name
          type: String
      rows:
        - ["1", "alice"]
        - ["2", "bob"]
      repeat: 1`

	description = "a source writing literal rows, optionally repeated"
)

var (
	_ step.Step        = &Generator{}
	_ step.Declarer    = &Generator{}
	_ step.Describable = &Generator{}
)

func init() {
	step.Add("generator", func() step.Step {
		return &Generator{}
	})
}

// Generator writes Rows, Repeat times. Every literal is converted from its
// string form with the format of its field.
type Generator struct {
	Fields []*row.Value `json:"fields" doc:"the layout of the rows"`
	Rows   [][]string   `json:"rows" doc:"the rows as strings, an empty string is null"`
	Repeat int          `json:"repeat" doc:"how often the rows are written, 1 when 0"`
	// Limit writes that many rows, cycling over Rows, ignoring Repeat.
	Limit int64 `json:"limit" doc:"the number of rows written, overrides repeat"`

	meta  *row.Meta
	rows  []row.Row
	total int64
	n     int64
}

// Description implements step.Describable.
func (g *Generator) Description() string { return description }

// SampleConfig implements step.Describable.
func (g *Generator) SampleConfig() string { return sampleConfig }

// Channels implements step.Declarer.
func (g *Generator) Channels() step.Channels {
	return step.Channels{MinInputs: 0, MaxInputs: 0, Outputs: true}
}

// Init converts the literal rows.
func (g *Generator) Init(rt *step.Runtime) error {
	if len(g.Fields) == 0 {
		return step.ConfigError{Step: rt.Name(), Reason: "no fields"}
	}
	g.meta = row.NewMeta(g.Fields...)
	g.rows = make([]row.Row, 0, len(g.Rows))
	for i, literal := range g.Rows {
		if len(literal) != g.meta.Size() {
			return step.ConfigError{
				Step:   rt.Name(),
				Reason: fmt.Sprintf("row %d has %d values, expected %d", i, len(literal), g.meta.Size()),
			}
		}
		r := row.Allocate(g.meta.Size())
		for j, s := range literal {
			v, err := g.meta.Value(j).ConvertFromString(s)
			if err != nil {
				return step.ConfigError{Step: rt.Name(), Reason: fmt.Sprintf("row %d, %s", i, err)}
			}
			r[j] = v
		}
		g.rows = append(g.rows, r)
	}

	switch {
	case len(g.rows) == 0:
		g.total = 0
	case g.Limit > 0:
		g.total = g.Limit
	case g.Repeat > 0:
		g.total = int64(g.Repeat) * int64(len(g.rows))
	default:
		g.total = int64(len(g.rows))
	}
	rt.Logger().With("rows", g.total).Debugln("generator ready")
	return nil
}

// ProcessRow writes the next row.
func (g *Generator) ProcessRow(rt *step.Runtime) (bool, error) {
	if g.n >= g.total {
		rt.SetOutputDone()
		return false, nil
	}
	r := g.rows[g.n%int64(len(g.rows))].Clone()
	g.n++
	rt.IncrementInput(1)
	return true, rt.PutRow(g.meta, r)
}

// Dispose implements step.Step.
func (g *Generator) Dispose(rt *step.Runtime) error {
	g.rows = nil
	return nil
}
