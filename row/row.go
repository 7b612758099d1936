// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package row holds the data model moving through a pipeline: the Value
// describing one column, the Meta describing a row layout and the Row itself.
//
// A Row carries no names, a value's position in the Row is its binding to the
// Meta describing it. Once a row has been put on a channel it belongs to its
// readers and must not be mutated, a step that needs to change a value copies
// the row first (see Meta.CloneRow).
package row

// Row is a fixed arity list of raw values, one per Value of its Meta.
type Row []interface{}

// Allocate returns an empty Row of size n.
func Allocate(n int) Row {
	return make(Row, n)
}

// Resize returns a Row of size n holding the leading values of r. r itself is
// never modified.
func (r Row) Resize(n int) Row {
	out := make(Row, n)
	copy(out, r)
	return out
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return r.Resize(len(r))
}
