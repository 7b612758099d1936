// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package events describes what a running pipeline reports about itself.
package events

import (
	"encoding/json"
	"fmt"
)

// Event is produced by a running pipeline.
//
// baseEvents are sent when the pipeline starts and exits, metricsEvents carry
// the row counters of one step copy and errorEvents describe rejected rows and
// failed steps.
type Event interface {
	Emit() ([]byte, error)
	String() string
}

type baseEvent struct {
	Ts        int64             `json:"ts"`
	Kind      string            `json:"name"`
	Version   string            `json:"version,omitempty"`
	Endpoints map[string]string `json:"endpoints,omitempty"`
}

// NewBootEvent creates the event sent once a pipeline has started every step
// copy. endpoints maps step names to their types.
func NewBootEvent(ts int64, version string, endpoints map[string]string) Event {
	return &baseEvent{
		Ts:        ts,
		Kind:      "boot",
		Version:   version,
		Endpoints: endpoints,
	}
}

// NewExitEvent creates the event sent once every step copy has finished.
func NewExitEvent(ts int64, version string, endpoints map[string]string) Event {
	return &baseEvent{
		Ts:        ts,
		Kind:      "exit",
		Version:   version,
		Endpoints: endpoints,
	}
}

func (e *baseEvent) Emit() ([]byte, error) {
	return json.Marshal(e)
}

func (e *baseEvent) String() string {
	return fmt.Sprintf("%s %v", e.Kind, e.Endpoints)
}

type metricsEvent struct {
	Ts       int64  `json:"ts"`
	Kind     string `json:"name"`
	Path     string `json:"path"`
	Read     int64  `json:"read"`
	Written  int64  `json:"written"`
	Rejected int64  `json:"rejected,omitempty"`
	Errors   int64  `json:"errors,omitempty"`
}

// Counters holds the row counters carried by a metrics event.
type Counters struct {
	Read, Written, Rejected, Errors int64
}

// NewMetricsEvent creates a metrics event for the step copy at path.
func NewMetricsEvent(ts int64, path string, c Counters) Event {
	return &metricsEvent{
		Ts:       ts,
		Kind:     "metrics",
		Path:     path,
		Read:     c.Read,
		Written:  c.Written,
		Rejected: c.Rejected,
		Errors:   c.Errors,
	}
}

func (e *metricsEvent) Emit() ([]byte, error) {
	return json.Marshal(e)
}

func (e *metricsEvent) String() string {
	return fmt.Sprintf("%s %s read: %d, written: %d, rejected: %d, errors: %d",
		e.Kind, e.Path, e.Read, e.Written, e.Rejected, e.Errors)
}

type errorEvent struct {
	Ts      int64       `json:"ts"`
	Kind    string      `json:"name"`
	Path    string      `json:"path"`
	Record  interface{} `json:"record,omitempty"`
	Message string      `json:"message,omitempty"`
}

// NewErrorEvent creates an event for a problem in the step copy at path.
// record is the offending row when there is one.
func NewErrorEvent(ts int64, path string, record interface{}, message string) Event {
	return &errorEvent{
		Ts:      ts,
		Kind:    "error",
		Path:    path,
		Record:  record,
		Message: message,
	}
}

func (e *errorEvent) Emit() ([]byte, error) {
	return json.Marshal(e)
}

func (e *errorEvent) String() string {
	return fmt.Sprintf("%s %s record: %v, message: %s", e.Kind, e.Path, e.Record, e.Message)
}
