// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pretty provides a step logging every row it passes on as JSON.
package pretty

import (
	"encoding/json"
	"strings"

	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

const (
	defaultIndent = 2

	sampleConfig = `    type: pretty
    config:
      spaces: 2
      # limit: 100`

	description = "logs the rows as JSON documents and passes them on"
)

var (
	_ step.Step        = &Prettify{}
	_ step.Declarer    = &Prettify{}
	_ step.Describable = &Prettify{}
)

func init() {
	step.Add("pretty", func() step.Step {
		return &Prettify{Spaces: defaultIndent}
	})
}

// Prettify logs each row as a document keyed by field name. Values are
// rendered with the formatting of their field.
type Prettify struct {
	Spaces int   `json:"spaces" doc:"indentation of the documents, one line each when 0"`
	Limit  int64 `json:"limit" doc:"the number of rows logged, all when 0"`

	logged int64
}

// Description implements step.Describable.
func (p *Prettify) Description() string { return description }

// SampleConfig implements step.Describable.
func (p *Prettify) SampleConfig() string { return sampleConfig }

// Channels implements step.Declarer.
func (p *Prettify) Channels() step.Channels {
	return step.Channels{MinInputs: 1, MaxInputs: -1, Outputs: true}
}

// Init implements step.Step.
func (p *Prettify) Init(rt *step.Runtime) error {
	p.logged = 0
	return nil
}

// ProcessRow implements step.Step.
func (p *Prettify) ProcessRow(rt *step.Runtime) (bool, error) {
	r, err := rt.GetRow()
	if err != nil || r == nil {
		rt.SetOutputDone()
		return false, err
	}
	meta := rt.InputRowMeta()
	if p.Limit == 0 || p.logged < p.Limit {
		b, err := p.format(meta, r)
		if err != nil {
			return false, err
		}
		rt.Logger().Infof("\n%s", b)
		p.logged++
	}
	return true, rt.PutRow(meta, r)
}

func (p *Prettify) format(meta *row.Meta, r row.Row) ([]byte, error) {
	doc := make(map[string]interface{}, meta.Size())
	for i, v := range meta.Values() {
		if v.IsNull(r[i]) {
			doc[v.Name] = nil
			continue
		}
		s, err := v.GetString(r[i])
		if err != nil {
			return nil, err
		}
		doc[v.Name] = s
	}
	if p.Spaces > 0 {
		return json.MarshalIndent(doc, "", strings.Repeat(" ", p.Spaces))
	}
	return json.Marshal(doc)
}

// Dispose implements step.Step.
func (p *Prettify) Dispose(rt *step.Runtime) error {
	return nil
}
