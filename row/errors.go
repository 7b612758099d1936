// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package row

import "fmt"

// ConversionError is returned when a raw value can not be converted to or
// from the type its Value describes.
type ConversionError struct {
	Value string
	Type  Type
	Data  interface{}
	Err   string
}

func (e ConversionError) Error() string {
	return fmt.Sprintf("unable to convert '%v' for %s (%s), %s", e.Data, e.Value, e.Type, e.Err)
}

// NoSuchValueError is returned when a Meta is asked for a value it does not hold.
type NoSuchValueError struct {
	Name string
}

func (e NoSuchValueError) Error() string {
	return fmt.Sprintf("value '%s' not found in row layout", e.Name)
}
