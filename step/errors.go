// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

import (
	"fmt"

	"github.com/compose/rowflow/row"
)

// ErrNotFound gives the details of the failed step
type ErrNotFound struct {
	Name string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("step '%s' not found in registry", e.Name)
}

// ConfigError is returned when a step can not start with its configuration.
type ConfigError struct {
	Step   string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for step '%s', %s", e.Step, e.Reason)
}

// RowError rejects a single row. Returned from ProcessRow it sends the row to
// the step's error hop, or fails the step when it has none.
type RowError struct {
	Code    string
	Field   string
	Message string

	// Meta and Row describe the rejected row, the last row read when nil.
	Meta *row.Meta
	Row  row.Row
}

// NewRowError creates a RowError for the last row read.
func NewRowError(code, field, message string) *RowError {
	return &RowError{Code: code, Field: field, Message: message}
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
}

// RejectionError fails a step rejecting more rows than its error handling allows.
type RejectionError struct {
	Rejected int64
	Read     int64
	Limit    string
}

func (e RejectionError) Error() string {
	return fmt.Sprintf("too many rejected rows, %d of %d read exceeds %s", e.Rejected, e.Read, e.Limit)
}

// SafeModeError fails a step reading different row layouts from its inputs.
type SafeModeError struct {
	Expected string
	Got      string
	From     string
}

func (e SafeModeError) Error() string {
	return fmt.Sprintf("row layout from %s differs, expected %s, got %s", e.From, e.Expected, e.Got)
}

// TimeoutError fails a step running longer than its time budget.
type TimeoutError struct {
	Step    string
	Timeout string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("step '%s' exceeded its timeout of %s", e.Step, e.Timeout)
}
