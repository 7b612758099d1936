// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adaptor

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/compose/rowflow/row"
)

// Format is the wire format rows are written to the pipe in.
type Format int

// The supported wire formats.
const (
	CSV Format = iota
	JSON
)

// Null is how CSV writes a null value.
const Null = `\N`

func (f Format) String() string {
	if f == JSON {
		return "json"
	}
	return "csv"
}

// ParseFormat returns the format named s, "" is CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "csv":
		return CSV, nil
	case "json", "jsonl", "json-lines":
		return JSON, nil
	}
	return CSV, fmt.Errorf("unknown format '%s'", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// An Encoder writes rows of one layout in a wire format.
type Encoder interface {
	Encode(r row.Row) error
	Flush() error
}

// NewEncoder returns an Encoder writing rows of meta to w.
func NewEncoder(f Format, meta *row.Meta, w io.Writer) Encoder {
	if f == JSON {
		return &jsonEncoder{meta: meta, enc: json.NewEncoder(w)}
	}
	return &csvEncoder{meta: meta, w: csv.NewWriter(w), record: make([]string, meta.Size())}
}

// csvEncoder writes every value in its text form, nulls as Null.
type csvEncoder struct {
	meta   *row.Meta
	w      *csv.Writer
	record []string
}

func (e *csvEncoder) Encode(r row.Row) error {
	for i, v := range e.meta.Values() {
		var raw interface{}
		if i < len(r) {
			raw = r[i]
		}
		if v.IsNull(raw) {
			e.record[i] = Null
			continue
		}
		s, err := v.GetString(raw)
		if err != nil {
			return errors.Wrapf(err, "encoding %s", v.Name)
		}
		e.record[i] = s
	}
	return e.w.Write(e.record)
}

func (e *csvEncoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

// jsonEncoder writes one object per line. Integers, numbers and booleans
// keep their JSON type, everything else is written in its text form.
type jsonEncoder struct {
	meta *row.Meta
	enc  *json.Encoder
}

func (e *jsonEncoder) Encode(r row.Row) error {
	doc := make(map[string]interface{}, e.meta.Size())
	for i, v := range e.meta.Values() {
		var raw interface{}
		if i < len(r) {
			raw = r[i]
		}
		if v.IsNull(raw) {
			doc[v.Name] = nil
			continue
		}
		n, err := v.Native(raw)
		if err != nil {
			return errors.Wrapf(err, "encoding %s", v.Name)
		}
		switch v.Type {
		case row.TypeInteger:
			doc[v.Name], err = v.GetInteger(n)
		case row.TypeNumber:
			doc[v.Name], err = v.GetNumber(n)
		case row.TypeBoolean:
			doc[v.Name], err = v.GetBoolean(n)
		default:
			doc[v.Name], err = v.GetString(n)
		}
		if err != nil {
			return errors.Wrapf(err, "encoding %s", v.Name)
		}
	}
	return e.enc.Encode(doc)
}

func (e *jsonEncoder) Flush() error { return nil }

// RowReader reads back what an Encoder wrote, as rows of native values.
type RowReader struct {
	meta   *row.Meta
	format Format
	csv    *csv.Reader
	json   *json.Decoder
}

// NewRowReader returns a RowReader for rows of meta in format f.
func NewRowReader(f Format, meta *row.Meta, r io.Reader) *RowReader {
	normal := meta.Clone()
	for _, v := range normal.Values() {
		v.Storage = row.StorageNormal
		v.Dictionary = nil
	}
	rr := &RowReader{meta: normal, format: f}
	if f == JSON {
		rr.json = json.NewDecoder(r)
		rr.json.UseNumber()
	} else {
		rr.csv = csv.NewReader(r)
		rr.csv.FieldsPerRecord = meta.Size()
		rr.csv.ReuseRecord = true
	}
	return rr
}

// Meta returns the layout of the rows read, with normal storage.
func (rr *RowReader) Meta() *row.Meta {
	return rr.meta
}

// Read returns the next row, io.EOF after the last one.
func (rr *RowReader) Read() (row.Row, error) {
	if rr.format == JSON {
		return rr.readJSON()
	}
	record, err := rr.csv.Read()
	if err != nil {
		return nil, err
	}
	r := row.Allocate(rr.meta.Size())
	for i, s := range record {
		if s == Null {
			continue
		}
		if r[i], err = rr.meta.Value(i).ConvertFromString(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (rr *RowReader) readJSON() (row.Row, error) {
	var doc map[string]interface{}
	if err := rr.json.Decode(&doc); err != nil {
		return nil, err
	}
	r := row.Allocate(rr.meta.Size())
	for i, v := range rr.meta.Values() {
		val, ok := doc[v.Name]
		if !ok || val == nil {
			continue
		}
		var err error
		switch t := val.(type) {
		case json.Number:
			switch v.Type {
			case row.TypeInteger:
				r[i], err = t.Int64()
			case row.TypeNumber:
				r[i], err = t.Float64()
			default:
				r[i], err = v.ConvertFromString(t.String())
			}
		case bool:
			r[i] = t
		case string:
			r[i], err = v.ConvertFromString(t)
		default:
			err = row.ConversionError{Value: v.Name, Type: v.Type, Data: val, Err: "unexpected JSON value"}
		}
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}
