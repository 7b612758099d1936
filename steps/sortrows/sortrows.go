// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sortrows provides a step sorting all of its rows in memory. Rows
// with equal keys keep their order of arrival.
package sortrows

import (
	"fmt"

	"github.com/google/btree"

	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

const (
	sampleConfig = `    type: sort
    config:
      keys:
        - field: country
        - field: amount
          descending: true
      unique: false`

	description = "sorts all rows in memory on one or more key fields"
)

var (
	_ step.Step        = &Sort{}
	_ step.Describable = &Sort{}
)

func init() {
	step.Add("sort", func() step.Step {
		return &Sort{}
	})
}

// Sort buffers every input row and writes them ordered on Keys once the
// inputs are exhausted.
type Sort struct {
	Keys   Keys `json:"keys" doc:"the fields to order on"`
	Unique bool `json:"unique" doc:"only write the first of the rows with equal keys"`

	meta   *row.Meta
	cmp    *row.Meta
	fields []int
	tree   *btree.BTree
	seq    uint64
	err    error
}

type item struct {
	r   row.Row
	seq uint64
	s   *Sort
}

func (i *item) Less(than btree.Item) bool {
	other := than.(*item)
	c, err := i.s.cmp.Compare(i.r, other.r, i.s.fields)
	if err != nil && i.s.err == nil {
		i.s.err = err
	}
	if c != 0 {
		return c < 0
	}
	return i.seq < other.seq
}

// Description implements step.Describable.
func (s *Sort) Description() string { return description }

// SampleConfig implements step.Describable.
func (s *Sort) SampleConfig() string { return sampleConfig }

// Init implements step.Step.
func (s *Sort) Init(rt *step.Runtime) error {
	if len(s.Keys) == 0 {
		return step.ConfigError{Step: rt.Name(), Reason: "no keys"}
	}
	s.tree = btree.New(32)
	return nil
}

// ProcessRow buffers one row, or writes them all once the inputs are done.
func (s *Sort) ProcessRow(rt *step.Runtime) (bool, error) {
	r, err := rt.GetRow()
	if err != nil {
		return false, err
	}
	if r == nil {
		err := s.flush(rt)
		rt.SetOutputDone()
		return false, err
	}

	meta := rt.InputRowMeta()
	if s.meta == nil {
		out := meta.Clone()
		if s.cmp, s.fields, err = s.Keys.Bind(out); err != nil {
			return false, err
		}
		s.meta = out
	} else if !s.meta.Equal(meta) {
		return false, fmt.Errorf("sort input layouts differ, %s and %s", s.meta.Describe(), meta.Describe())
	}
	// rows of every input are kept under one layout
	if r, err = s.meta.ConvertRow(meta, r); err != nil {
		return false, err
	}

	s.tree.ReplaceOrInsert(&item{r: r, seq: s.seq, s: s})
	s.seq++
	return true, s.err
}

func (s *Sort) flush(rt *step.Runtime) error {
	if s.meta == nil {
		return nil
	}
	rt.Logger().With("rows", s.tree.Len()).Debugln("writing sorted rows")
	var (
		prev row.Row
		err  error
	)
	s.tree.Ascend(func(i btree.Item) bool {
		r := i.(*item).r
		if s.Unique && prev != nil {
			var c int
			if c, err = s.cmp.Compare(prev, r, s.fields); err != nil || c == 0 {
				return err == nil
			}
		}
		prev = r
		err = rt.PutRow(s.meta, r)
		return err == nil && !rt.Stopped()
	})
	s.tree.Clear(false)
	return err
}

// Dispose implements step.Step.
func (s *Sort) Dispose(rt *step.Runtime) error {
	if s.tree != nil {
		s.tree.Clear(false)
	}
	return nil
}
