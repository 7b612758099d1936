// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

// State is the lifecycle state of a step copy.
type State int32

// A copy moves Created, Running, Stopping, Done. Error can be reached from
// every state and is final.
const (
	Created State = iota
	Running
	Stopping
	Done
	Error
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Done:
		return "done"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Finished reports whether s is final.
func (s State) Finished() bool {
	return s == Done || s == Error
}
