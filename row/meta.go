// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package row

import (
	"fmt"
	"strings"

	"github.com/segmentio/fasthash/fnv1a"
)

// Meta is the ordered, name unique list of Values describing a row layout.
//
// A Meta is handed downstream together with the rows it describes and is
// read concurrently from then on. A step that wants to change a layout it
// received clones it first.
type Meta struct {
	values  []*Value
	byName  map[string]int
	byLower map[string]int
}

// NewMeta creates a Meta holding clones of the given values.
func NewMeta(values ...*Value) *Meta {
	m := &Meta{}
	m.reindex()
	for _, v := range values {
		m.AddValue(v)
	}
	return m
}

func (m *Meta) reindex() {
	m.byName = make(map[string]int, len(m.values))
	m.byLower = make(map[string]int, len(m.values))
	for i, v := range m.values {
		m.index(i, v)
	}
}

func (m *Meta) index(i int, v *Value) {
	m.byName[v.Name] = i
	lower := strings.ToLower(v.Name)
	if _, ok := m.byLower[lower]; !ok {
		m.byLower[lower] = i
	}
}

// uniqueName returns name, or name_1, name_2, ... when name is taken.
func (m *Meta) uniqueName(name string) string {
	if m.IndexOfValue(name) < 0 {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if m.IndexOfValue(candidate) < 0 {
			return candidate
		}
	}
}

// AddValue appends a clone of v. When the name is already in use the clone is
// renamed to name_1, name_2 and so on.
func (m *Meta) AddValue(v *Value) {
	m.InsertValue(len(m.values), v)
}

// InsertValue inserts a clone of v at position i, renaming it the way
// AddValue does.
func (m *Meta) InsertValue(i int, v *Value) {
	if m.byName == nil {
		m.reindex()
	}
	c := v.Clone()
	c.Name = m.uniqueName(c.Name)
	if c.Storage == StorageIndexed && c.Dictionary == nil {
		c.Dictionary = NewDictionary()
	}
	if i < 0 || i > len(m.values) {
		i = len(m.values)
	}
	m.values = append(m.values, nil)
	copy(m.values[i+1:], m.values[i:])
	m.values[i] = c
	if i == len(m.values)-1 {
		m.index(i, c)
		return
	}
	m.reindex()
}

// AddMeta appends every value of other.
func (m *Meta) AddMeta(other *Meta) {
	for _, v := range other.values {
		m.AddValue(v)
	}
}

// MergeMeta appends every value of other, stamping origin on the appended
// values when it is not empty. Names already in use are renamed.
func (m *Meta) MergeMeta(other *Meta, origin string) {
	for _, v := range other.values {
		c := v.Clone()
		if origin != "" {
			c.Origin = origin
		}
		m.AddValue(c)
	}
}

// RemoveValue deletes the value called name.
func (m *Meta) RemoveValue(name string) error {
	i := m.IndexOfValue(name)
	if i < 0 {
		return NoSuchValueError{Name: name}
	}
	m.values = append(m.values[:i], m.values[i+1:]...)
	m.reindex()
	return nil
}

// Size returns the number of values.
func (m *Meta) Size() int {
	if m == nil {
		return 0
	}
	return len(m.values)
}

// Value returns the value at position i, nil when out of range.
func (m *Meta) Value(i int) *Value {
	if i < 0 || i >= m.Size() {
		return nil
	}
	return m.values[i]
}

// Values returns the values in order. The slice is a copy, the values are not.
func (m *Meta) Values() []*Value {
	out := make([]*Value, len(m.values))
	copy(out, m.values)
	return out
}

// IndexOfValue returns the position of the value called name, -1 when there
// is none. An exact match wins over a case insensitive one.
func (m *Meta) IndexOfValue(name string) int {
	if m == nil || m.byName == nil {
		return -1
	}
	if i, ok := m.byName[name]; ok {
		return i
	}
	if i, ok := m.byLower[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

// SearchValue returns the value called name, nil when there is none.
func (m *Meta) SearchValue(name string) *Value {
	return m.Value(m.IndexOfValue(name))
}

// FieldNames returns the value names in order.
func (m *Meta) FieldNames() []string {
	names := make([]string, len(m.values))
	for i, v := range m.values {
		names[i] = v.Name
	}
	return names
}

// Clone returns a deep copy: values can be changed on the copy without the
// original ever observing it.
func (m *Meta) Clone() *Meta {
	c := &Meta{values: make([]*Value, len(m.values))}
	for i, v := range m.values {
		c.values[i] = v.Clone()
	}
	c.reindex()
	return c
}

// Equal reports whether other describes the same layout, the same names,
// types and storage in the same order. Indexed values of equal layouts may
// still use different dictionaries, see ConvertRow.
func (m *Meta) Equal(other *Meta) bool {
	if m.Size() != other.Size() {
		return false
	}
	for i, v := range m.values {
		o := other.values[i]
		if !strings.EqualFold(v.Name, o.Name) || v.Type != o.Type || v.Storage != o.Storage {
			return false
		}
	}
	return true
}

// ConvertRow re-encodes r, laid out by from, for this layout. Values are
// taken by position. Indexed values are resolved through the dictionaries of
// from and stored again through the dictionaries of m. r itself is never
// changed, a copy is returned when a value had to be re-encoded.
func (m *Meta) ConvertRow(from *Meta, r Row) (Row, error) {
	if from == m || from == nil {
		return r, nil
	}
	var out Row
	for i, v := range m.values {
		f := from.Value(i)
		if f == nil || i >= len(r) {
			break
		}
		if sameEncoding(f, v) {
			continue
		}
		native, err := f.Native(r[i])
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = r.Clone()
		}
		out[i] = v.Raw(native)
	}
	if out == nil {
		return r, nil
	}
	return out, nil
}

func sameEncoding(a, b *Value) bool {
	if a.Storage != b.Storage {
		return false
	}
	return a.Storage == StorageNormal || a.Dictionary == b.Dictionary
}

// GetString renders value i of r as text.
func (m *Meta) GetString(r Row, i int) (string, error) {
	v := m.Value(i)
	if v == nil {
		return "", NoSuchValueError{Name: fmt.Sprintf("#%d", i)}
	}
	if i >= len(r) {
		return "", nil
	}
	return v.GetString(r[i])
}

// String renders r as a bracketed, comma separated list.
func (m *Meta) String(r Row) string {
	parts := make([]string, m.Size())
	for i := range m.values {
		s, err := m.GetString(r, i)
		if err != nil {
			s = "<" + err.Error() + ">"
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Describe renders the layout itself, one value per position.
func (m *Meta) Describe() string {
	parts := make([]string, len(m.values))
	for i, v := range m.values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// CloneRow returns a copy of r sized to this layout so the caller may change it.
func (m *Meta) CloneRow(r Row) Row {
	return r.Resize(m.Size())
}

// Native returns value i of r in its native representation.
func (m *Meta) Native(r Row, i int) (interface{}, error) {
	v := m.Value(i)
	if v == nil || i >= len(r) {
		return nil, NoSuchValueError{Name: fmt.Sprintf("#%d", i)}
	}
	return v.Native(r[i])
}

// Compare compares a and b on the given positions in order, the first
// difference decides. Each position uses its Value's direction and null
// ordering.
func (m *Meta) Compare(a, b Row, fields []int) (int, error) {
	for _, i := range fields {
		v := m.Value(i)
		if v == nil {
			return 0, NoSuchValueError{Name: fmt.Sprintf("#%d", i)}
		}
		cmp, err := v.Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if cmp != 0 {
			return cmp, nil
		}
	}
	return 0, nil
}

// Hash hashes the text form of the given positions of r with 64 bit FNV-1a.
// Rows that Compare equal on fields hash equal.
func (m *Meta) Hash(r Row, fields []int) (uint64, error) {
	h := fnv1a.Init64
	for _, i := range fields {
		v := m.Value(i)
		if v == nil {
			return 0, NoSuchValueError{Name: fmt.Sprintf("#%d", i)}
		}
		s, err := v.GetString(r[i])
		if err != nil {
			return 0, err
		}
		if v.CaseInsensitive {
			s = strings.ToLower(s)
		}
		h = fnv1a.AddString64(h, s)
		h = fnv1a.AddUint64(h, uint64(i))
	}
	return h, nil
}
