// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/compose/rowflow/step"
)

// Result is the final status of a run.
type Result struct {
	Pipeline string
	RunID    string
	Steps    []step.Status

	// Errors sums the error counts of every copy, MaxErrors is the highest
	// count of a single copy.
	Errors    int64
	MaxErrors int64
	Rejected  int64
	Stopped   bool
	Elapsed   time.Duration
}

// Failed reports whether a step copy failed. Rejected rows do not fail a run.
func (r *Result) Failed() bool {
	return r.Errors > 0
}

// Err returns a *FailedError for a failed run, nil otherwise.
func (r *Result) Err() error {
	if !r.Failed() {
		return nil
	}
	e := &FailedError{Pipeline: r.Pipeline, Errors: r.Errors}
	for _, s := range r.Steps {
		if s.State == step.Error {
			e.Steps = append(e.Steps, fmt.Sprintf("%s/%d", s.Step, s.Copy))
		}
	}
	return e
}

// FailedError is returned for a run in which step copies failed.
type FailedError struct {
	Pipeline string
	Errors   int64
	Steps    []string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("pipeline %s failed with %d errors in %s", e.Pipeline, e.Errors, strings.Join(e.Steps, ", "))
}

// Status returns the merged status of every copy of step name.
func (r *Result) Status(name string) (step.Status, bool) {
	var (
		merged step.Status
		found  bool
	)
	for _, s := range r.Steps {
		if s.Step != name {
			continue
		}
		if !found {
			merged = step.Status{Step: s.Step, Type: s.Type, State: s.State}
			found = true
		}
		if s.State == step.Error {
			merged.State = step.Error
		}
		merged.Read += s.Read
		merged.Written += s.Written
		merged.Input += s.Input
		merged.Output += s.Output
		merged.Rejected += s.Rejected
		merged.Errors += s.Errors
		merged.Messages = append(merged.Messages, s.Messages...)
		if s.Elapsed > merged.Elapsed {
			merged.Elapsed = s.Elapsed
		}
	}
	return merged, found
}

// Render writes the per copy counters as a table, followed by the first
// error messages of every copy.
func (r *Result) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"step", "copy", "state", "read", "written", "input", "output", "rejected", "errors", "time"})
	for _, s := range r.Steps {
		table.Append([]string{
			s.Step,
			strconv.Itoa(s.Copy),
			s.State.String(),
			strconv.FormatInt(s.Read, 10),
			strconv.FormatInt(s.Written, 10),
			strconv.FormatInt(s.Input, 10),
			strconv.FormatInt(s.Output, 10),
			strconv.FormatInt(s.Rejected, 10),
			strconv.FormatInt(s.Errors, 10),
			s.Elapsed.Round(time.Millisecond).String(),
		})
	}
	table.Render()

	for _, s := range r.Steps {
		for _, msg := range s.Messages {
			fmt.Fprintf(w, "%s/%d: %s\n", s.Step, s.Copy, msg)
		}
	}
}
