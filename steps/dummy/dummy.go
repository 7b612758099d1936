// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dummy provides a step passing its rows through. Without output
// hops it is a sink discarding them.
package dummy

import (
	"github.com/compose/rowflow/step"
)

const (
	sampleConfig = `    type: dummy`

	description = "passes rows through, or discards them when nothing reads its output"
)

var (
	_ step.Step        = &Dummy{}
	_ step.Declarer    = &Dummy{}
	_ step.Describable = &Dummy{}
)

func init() {
	step.Add("dummy", func() step.Step {
		return &Dummy{}
	})
}

// Dummy copies every input row to its outputs.
type Dummy struct{}

// Description implements step.Describable.
func (d *Dummy) Description() string { return description }

// SampleConfig implements step.Describable.
func (d *Dummy) SampleConfig() string { return sampleConfig }

// Channels implements step.Declarer.
func (d *Dummy) Channels() step.Channels {
	return step.Channels{MinInputs: 0, MaxInputs: -1, Outputs: true}
}

// Init implements step.Step.
func (d *Dummy) Init(rt *step.Runtime) error { return nil }

// ProcessRow implements step.Step.
func (d *Dummy) ProcessRow(rt *step.Runtime) (bool, error) {
	r, err := rt.GetRow()
	if err != nil || r == nil {
		rt.SetOutputDone()
		return false, err
	}
	return true, rt.PutRow(rt.InputRowMeta(), r)
}

// Dispose implements step.Step.
func (d *Dummy) Dispose(rt *step.Runtime) error { return nil }
