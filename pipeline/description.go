// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/compose/rowflow/step"
)

// Description is the graph of a pipeline: its steps, the hops between them
// and the options shared by every step.
type Description struct {
	Name  string    `json:"name" yaml:"name"`
	Steps []StepDef `json:"steps" yaml:"steps"`
	Hops  []Hop     `json:"hops" yaml:"hops"`

	// RowSetSize is the capacity of every row set, pipe.DefaultSize when 0.
	RowSetSize int `json:"row_set_size" yaml:"row_set_size"`
	// SafeMode checks that every input of a step delivers the same layout.
	SafeMode bool `json:"safe_mode" yaml:"safe_mode"`
	// ReportErrors is the number of error messages kept per step copy.
	ReportErrors int `json:"report_errors" yaml:"report_errors"`
}

// StepDef describes one step of the graph.
type StepDef struct {
	Name   string      `json:"name" yaml:"name"`
	Type   string      `json:"type" yaml:"type"`
	Copies int         `json:"copies" yaml:"copies"`
	Config step.Config `json:"config" yaml:"config"`

	// ErrorHandling configures the rows sent over the step's error hop.
	ErrorHandling *step.ErrorHandling `json:"error_handling,omitempty" yaml:"error_handling"`
	// MaxRows finishes the step once it wrote that many rows.
	MaxRows int64 `json:"max_rows,omitempty" yaml:"max_rows"`
	// Timeout fails the step when it runs longer, as understood by
	// time.ParseDuration.
	Timeout string `json:"timeout,omitempty" yaml:"timeout"`
}

func (d StepDef) copies() int {
	if d.Copies < 1 {
		return 1
	}
	return d.Copies
}

func (d StepDef) timeout() (time.Duration, error) {
	if d.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(d.Timeout)
}

// Hop connects two steps.
type Hop struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Distribution is round-robin (the default), broadcast or partition.
	Distribution string `json:"distribution,omitempty" yaml:"distribution"`
	// PartitionField is the key of a partition hop.
	PartitionField string `json:"partition_field,omitempty" yaml:"partition_field"`
	// Error marks the hop receiving the rows From rejects.
	Error    bool `json:"error,omitempty" yaml:"error"`
	Disabled bool `json:"disabled,omitempty" yaml:"disabled"`
}

func (h Hop) String() string {
	s := fmt.Sprintf("%s -> %s", h.From, h.To)
	if h.Error {
		s += " (error)"
	}
	return s
}

// ValidationError lists every problem found in a Description.
type ValidationError struct {
	Problems []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid pipeline, %s", strings.Join(e.Problems, "; "))
}
