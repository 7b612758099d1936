// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package row

import (
	"fmt"
	"strings"
)

// Type is the semantic type of a column.
type Type int

// The semantic types a Value can describe.
const (
	TypeNone Type = iota
	TypeNumber
	TypeString
	TypeDate
	TypeBoolean
	TypeInteger
	TypeBigNumber
	TypeSerializable
	TypeBinary
)

var typeNames = []string{
	TypeNone:         "None",
	TypeNumber:       "Number",
	TypeString:       "String",
	TypeDate:         "Date",
	TypeBoolean:      "Boolean",
	TypeInteger:      "Integer",
	TypeBigNumber:    "BigNumber",
	TypeSerializable: "Serializable",
	TypeBinary:       "Binary",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType returns the Type named s, case is ignored.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return Type(i), nil
		}
	}
	return TypeNone, fmt.Errorf("unknown value type '%s'", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so step configurations can
// name types as strings.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Storage describes how a column's raw values are held in a Row.
type Storage int

const (
	// StorageNormal rows hold the native value.
	StorageNormal Storage = iota
	// StorageIndexed rows hold an Index into the Value's Dictionary.
	StorageIndexed
)

func (s Storage) String() string {
	switch s {
	case StorageNormal:
		return "normal"
	case StorageIndexed:
		return "indexed"
	default:
		return "unknown"
	}
}
