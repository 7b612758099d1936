// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package step defines the contract every pipeline step implements and the
// Runtime executing one copy of a step.
//
// A step is driven by its Runtime: Init once, ProcessRow until it returns
// false, then Dispose, which runs on every exit path. Steps read rows with
// Runtime.GetRow and write them with Runtime.PutRow, the Runtime takes care of
// channels, distribution, error rows and stopping.
package step

// Step is implemented by every step type.
//
// Init validates the configuration and acquires what the step needs, an error
// aborts the whole pipeline before any row flows. ProcessRow does one
// iteration of work and reports whether it wants to be called again. A
// *RowError returned from ProcessRow rejects a single row, any other error is
// fatal.
type Step interface {
	Init(rt *Runtime) error
	ProcessRow(rt *Runtime) (bool, error)
	Dispose(rt *Runtime) error
}

// Channels declares the hops a step type accepts.
type Channels struct {
	// MinInputs and MaxInputs bound the number of input hops, MaxInputs -1 is
	// unlimited.
	MinInputs int
	MaxInputs int
	// Outputs is false for terminal steps.
	Outputs bool
	// ErrorHandling is true when rejected rows may be sent to an error hop.
	ErrorHandling bool
}

// DefaultChannels applies to steps which do not implement Declarer.
var DefaultChannels = Channels{MinInputs: 1, MaxInputs: -1, Outputs: true}

// Declarer is implemented by steps which accept other hops than DefaultChannels.
type Declarer interface {
	Channels() Channels
}

// ChannelsOf returns the channels s declares.
func ChannelsOf(s Step) Channels {
	if d, ok := s.(Declarer); ok {
		return d.Channels()
	}
	return DefaultChannels
}

// Describable defines the interface that all steps must follow in order to
// support the help functions.
// SampleConfig() returns an example YAML structure to configure the step
// Description() provides contextual information for what the step is for
type Describable interface {
	SampleConfig() string
	Description() string
}
