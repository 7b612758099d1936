// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filter provides a step keeping the rows whose field matches a
// condition.
package filter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

const (
	sampleConfig = `    type: filter
    config:
      field: age
      operator: ">="
      match: 18
      # send_true_to: adults
      # send_false_to: minors`

	description = "keeps the rows matching a condition on one field, or routes them to two targets"
)

// Codes of the rows rejected by a filter.
const (
	CodeWrongType  = "FILTER001"
	CodeConversion = "FILTER002"
)

var (
	_ step.Step        = &Filter{}
	_ step.Declarer    = &Filter{}
	_ step.Describable = &Filter{}
)

// UnknownOperatorError is returned from Init for an unsupported operator.
type UnknownOperatorError struct {
	Op string
}

func (e UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator, %s", e.Op)
}

// WrongTypeError describes a value that can not be compared as asked.
type WrongTypeError struct {
	Wanted string
	Got    string
}

func (e WrongTypeError) Error() string {
	return fmt.Sprintf("value is of incompatible type, wanted %s, got %s", e.Wanted, e.Got)
}

func init() {
	step.Add("filter", func() step.Step {
		return &Filter{}
	})
}

type operator int

const (
	opEqual operator = iota
	opNotEqual
	opRegexp
	opGreater
	opGreaterEqual
	opLess
	opLessEqual
)

func parseOperator(s string) (operator, error) {
	switch s {
	case "==", "eq", "$eq":
		return opEqual, nil
	case "!=", "ne", "$ne":
		return opNotEqual, nil
	case "=~":
		return opRegexp, nil
	case ">", "gt", "$gt":
		return opGreater, nil
	case ">=", "gte", "$gte":
		return opGreaterEqual, nil
	case "<", "lt", "$lt":
		return opLess, nil
	case "<=", "lte", "$lte":
		return opLessEqual, nil
	}
	return 0, UnknownOperatorError{s}
}

// Filter compares Field of every row with Match. Without targets matching
// rows are written to every output and the others are dropped.
type Filter struct {
	Field       string      `json:"field" doc:"the field to compare"`
	Operator    string      `json:"operator" doc:"one of ==, !=, =~, >, >=, <, <="`
	Match       interface{} `json:"match" doc:"the value compared with, a regular expression for =~"`
	SendTrueTo  string      `json:"send_true_to" doc:"the step receiving the matching rows"`
	SendFalseTo string      `json:"send_false_to" doc:"the step receiving the other rows"`

	name  string
	op    operator
	re    *regexp.Regexp
	match string
	limit float64

	meta  *row.Meta
	index int
	value *row.Value
	typed interface{}
}

// Description implements step.Describable.
func (f *Filter) Description() string { return description }

// SampleConfig implements step.Describable.
func (f *Filter) SampleConfig() string { return sampleConfig }

// Channels implements step.Declarer.
func (f *Filter) Channels() step.Channels {
	return step.Channels{MinInputs: 1, MaxInputs: -1, Outputs: true, ErrorHandling: true}
}

// Init parses the condition and checks the targets.
func (f *Filter) Init(rt *step.Runtime) error {
	if f.Field == "" {
		return step.ConfigError{Step: rt.Name(), Reason: "no field"}
	}
	op, err := parseOperator(f.Operator)
	if err != nil {
		return step.ConfigError{Step: rt.Name(), Reason: err.Error()}
	}
	f.name, f.op = rt.Name(), op
	if f.Match != nil {
		f.match = fmt.Sprint(f.Match)
	}

	switch f.op {
	case opRegexp:
		if f.re, err = regexp.Compile(f.match); err != nil {
			return step.ConfigError{Step: rt.Name(), Reason: err.Error()}
		}
	case opGreater, opGreaterEqual, opLess, opLessEqual:
		if f.limit, err = convertToFloat(f.Match); err != nil {
			return step.ConfigError{Step: rt.Name(), Reason: err.Error()}
		}
	}

	for _, target := range []string{f.SendTrueTo, f.SendFalseTo} {
		if target != "" && rt.Output(target) == nil {
			return step.ConfigError{Step: rt.Name(), Reason: fmt.Sprintf("no hop to target step %s", target)}
		}
	}
	return nil
}

// ProcessRow implements step.Step.
func (f *Filter) ProcessRow(rt *step.Runtime) (bool, error) {
	r, err := rt.GetRow()
	if err != nil || r == nil {
		rt.SetOutputDone()
		return false, err
	}
	meta := rt.InputRowMeta()
	if meta != f.meta {
		if err := f.bind(meta); err != nil {
			return false, err
		}
	}

	ok, err := f.matches(r)
	if err != nil {
		return true, err
	}

	switch {
	case f.SendTrueTo == "" && f.SendFalseTo == "":
		if ok {
			return true, rt.PutRow(meta, r)
		}
	case ok && f.SendTrueTo != "":
		return true, rt.PutRowToStep(meta, r, f.SendTrueTo)
	case !ok && f.SendFalseTo != "":
		return true, rt.PutRowToStep(meta, r, f.SendFalseTo)
	}
	return true, nil
}

// bind resolves the field in a new layout.
func (f *Filter) bind(meta *row.Meta) error {
	i := meta.IndexOfValue(f.Field)
	if i < 0 {
		return row.NoSuchValueError{Name: f.Field}
	}
	f.meta, f.index = meta, i
	f.value = meta.Value(i).Clone()
	f.value.Storage = row.StorageNormal
	f.value.Dictionary = nil
	f.typed = nil

	if f.op == opEqual || f.op == opNotEqual {
		typed, err := f.value.ConvertFromString(f.match)
		if err != nil {
			return step.ConfigError{Step: f.name, Reason: fmt.Sprintf("match %s, %s", f.match, err)}
		}
		f.typed = typed
	}
	return nil
}

func (f *Filter) matches(r row.Row) (bool, error) {
	native, err := f.meta.Native(r, f.index)
	if err != nil {
		return false, step.NewRowError(CodeConversion, f.Field, err.Error())
	}

	switch f.op {
	case opEqual, opNotEqual:
		cmp, err := f.value.Compare(native, f.typed)
		if err != nil {
			return false, step.NewRowError(CodeWrongType, f.Field, err.Error())
		}
		return (cmp == 0) == (f.op == opEqual), nil
	}

	if f.value.IsNull(native) {
		return false, nil
	}

	if f.op == opRegexp {
		s, err := f.value.GetString(native)
		if err != nil {
			return false, step.NewRowError(CodeConversion, f.Field, err.Error())
		}
		return f.re.MatchString(s), nil
	}

	v, err := f.value.GetNumber(native)
	if err != nil {
		return false, step.NewRowError(CodeWrongType, f.Field,
			WrongTypeError{"a number", fmt.Sprintf("%v", native)}.Error())
	}
	switch f.op {
	case opGreater:
		return v > f.limit, nil
	case opGreaterEqual:
		return v >= f.limit, nil
	case opLess:
		return v < f.limit, nil
	default:
		return v <= f.limit, nil
	}
}

func convertToFloat(in interface{}) (float64, error) {
	switch i := in.(type) {
	case float64:
		return i, nil
	case int:
		return float64(i), nil
	case int64:
		return float64(i), nil
	case string:
		return strconv.ParseFloat(i, 64)
	default:
		return math.NaN(), WrongTypeError{"float64 or int", fmt.Sprintf("%T", i)}
	}
}

// Dispose implements step.Step.
func (f *Filter) Dispose(rt *step.Runtime) error {
	f.meta = nil
	return nil
}
