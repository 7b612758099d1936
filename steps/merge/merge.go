// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package merge provides the sorted merge step: it combines inputs which are
// each sorted on the same keys into one sorted stream.
package merge

import (
	"fmt"
	"sort"

	"github.com/compose/rowflow/pipe"
	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
	"github.com/compose/rowflow/steps/sortrows"
)

const (
	sampleConfig = `    type: merge
    config:
      keys:
        - field: id`

	description = "merges inputs sorted on the same keys into one sorted stream"
)

var (
	_ step.Step        = &Merge{}
	_ step.Declarer    = &Merge{}
	_ step.Describable = &Merge{}
)

func init() {
	step.Add("merge", func() step.Step {
		return &Merge{}
	})
}

// Merge holds the next row of every input and writes the smallest one. Rows
// with equal keys are written in the order they were read.
type Merge struct {
	Keys sortrows.Keys `json:"keys" doc:"the fields the inputs are sorted on"`

	meta    *row.Meta
	cmp     *row.Meta
	fields  []int
	buffer  []*head
	started bool
}

type head struct {
	r  row.Row
	rs *pipe.RowSet
}

// Description implements step.Describable.
func (m *Merge) Description() string { return description }

// SampleConfig implements step.Describable.
func (m *Merge) SampleConfig() string { return sampleConfig }

// Channels implements step.Declarer.
func (m *Merge) Channels() step.Channels {
	return step.Channels{MinInputs: 1, MaxInputs: -1, Outputs: true}
}

// Init implements step.Step.
func (m *Merge) Init(rt *step.Runtime) error {
	if len(m.Keys) == 0 {
		return step.ConfigError{Step: rt.Name(), Reason: "no keys"}
	}
	return nil
}

// ProcessRow writes the smallest buffered row and replaces it with the next
// row of its input.
func (m *Merge) ProcessRow(rt *step.Runtime) (bool, error) {
	if !m.started {
		m.started = true
		if err := m.fill(rt); err != nil {
			return false, err
		}
	}
	if len(m.buffer) == 0 {
		rt.SetOutputDone()
		return false, nil
	}

	next := m.buffer[0]
	m.buffer = m.buffer[1:]
	if err := rt.PutRow(m.meta, next.r); err != nil {
		return false, err
	}

	r, err := rt.GetRowFrom(next.rs)
	if err != nil {
		return false, err
	}
	if r != nil {
		if err := m.insert(&head{r: r, rs: next.rs}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// fill reads the first row of every input and sorts them, input order
// breaking ties.
func (m *Merge) fill(rt *step.Runtime) error {
	for _, rs := range rt.Inputs() {
		r, err := rt.GetRowFrom(rs)
		if err != nil {
			return err
		}
		if r == nil {
			continue
		}
		if r, err = m.adopt(rs.Meta(), r); err != nil {
			return err
		}
		m.buffer = append(m.buffer, &head{r: r, rs: rs})
	}

	var err error
	sort.SliceStable(m.buffer, func(i, j int) bool {
		c, cerr := m.cmp.Compare(m.buffer[i].r, m.buffer[j].r, m.fields)
		if cerr != nil && err == nil {
			err = cerr
		}
		return c < 0
	})
	return err
}

// adopt checks that every input delivers the layout of the first one and
// re-encodes r, read under meta, for the output layout. Indexed values of
// different inputs resolve through different dictionaries.
func (m *Merge) adopt(meta *row.Meta, r row.Row) (row.Row, error) {
	if m.meta == nil {
		out := meta.Clone()
		cmp, fields, err := m.Keys.Bind(out)
		if err != nil {
			return nil, err
		}
		m.meta, m.cmp, m.fields = out, cmp, fields
	} else if !m.meta.Equal(meta) {
		return nil, fmt.Errorf("merge input layouts differ, %s and %s", m.meta.Describe(), meta.Describe())
	}
	return m.meta.ConvertRow(meta, r)
}

// insert places h after every buffered row with keys less or equal to its
// own, keeping equal keys in the order they were read.
func (m *Merge) insert(h *head) error {
	r, err := m.adopt(h.rs.Meta(), h.r)
	if err != nil {
		return err
	}
	h.r = r
	i := sort.Search(len(m.buffer), func(i int) bool {
		c, cerr := m.cmp.Compare(m.buffer[i].r, h.r, m.fields)
		if cerr != nil && err == nil {
			err = cerr
		}
		return c > 0
	})
	if err != nil {
		return err
	}
	m.buffer = append(m.buffer, nil)
	copy(m.buffer[i+1:], m.buffer[i:])
	m.buffer[i] = h
	return nil
}

// Dispose implements step.Step.
func (m *Merge) Dispose(rt *step.Runtime) error {
	m.buffer = nil
	return nil
}
