// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package row

import (
	"reflect"
	"testing"
)

func testMeta() *Meta {
	return NewMeta(
		NewValue("id", TypeInteger),
		NewValue("Name", TypeString),
		NewValue("amount", TypeNumber),
	)
}

var indexOfTests = []struct {
	name     string
	expected int
}{
	{"id", 0},
	{"Name", 1},
	{"name", 1},
	{"AMOUNT", 2},
	{"missing", -1},
}

func TestIndexOfValue(t *testing.T) {
	m := testMeta()
	for _, it := range indexOfTests {
		if got := m.IndexOfValue(it.name); got != it.expected {
			t.Errorf("[%s] wrong index, expected %d, got %d", it.name, it.expected, got)
		}
	}
}

func TestAddValueRenamesDuplicates(t *testing.T) {
	m := testMeta()
	dup := NewValue("id", TypeString)
	m.AddValue(dup)
	m.AddValue(dup)

	expected := []string{"id", "Name", "amount", "id_1", "id_2"}
	if got := m.FieldNames(); !reflect.DeepEqual(got, expected) {
		t.Errorf("wrong field names, expected %v, got %v", expected, got)
	}
	if dup.Name != "id" {
		t.Errorf("AddValue renamed the caller's value, expected id, got %s", dup.Name)
	}
	if got := m.IndexOfValue("id_2"); got != 4 {
		t.Errorf("wrong index for id_2, expected 4, got %d", got)
	}
}

func TestInsertAndRemoveValue(t *testing.T) {
	m := testMeta()
	m.InsertValue(1, NewValue("first", TypeString))
	if got := m.IndexOfValue("Name"); got != 2 {
		t.Errorf("wrong index after insert, expected 2, got %d", got)
	}
	if err := m.RemoveValue("first"); err != nil {
		t.Fatalf("unexpected RemoveValue error, %s", err)
	}
	if got := m.IndexOfValue("Name"); got != 1 {
		t.Errorf("wrong index after remove, expected 1, got %d", got)
	}
	if err := m.RemoveValue("first"); err == nil {
		t.Errorf("expected error removing a missing value, got nil")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	upstream := testMeta()
	downstream := upstream.Clone()

	downstream.Value(0).SortedDescending = true
	downstream.Value(1).Type = TypeBinary
	downstream.AddValue(NewValue("extra", TypeString))

	if upstream.Value(0).SortedDescending {
		t.Errorf("clone mutation leaked into the original value")
	}
	if upstream.Value(1).Type != TypeString {
		t.Errorf("wrong original type, expected %s, got %s", TypeString, upstream.Value(1).Type)
	}
	if upstream.Size() != 3 {
		t.Errorf("wrong original size, expected 3, got %d", upstream.Size())
	}
	if upstream.Equal(downstream) {
		t.Errorf("expected layouts to differ after changing the clone")
	}
}

func TestMergeMeta(t *testing.T) {
	m := testMeta()
	other := NewMeta(NewValue("id", TypeInteger), NewValue("extra", TypeString))
	m.MergeMeta(other, "lookup")

	expected := []string{"id", "Name", "amount", "id_1", "extra"}
	if got := m.FieldNames(); !reflect.DeepEqual(got, expected) {
		t.Errorf("wrong field names, expected %v, got %v", expected, got)
	}
	if got := m.SearchValue("extra").Origin; got != "lookup" {
		t.Errorf("wrong origin, expected lookup, got %s", got)
	}
	if other.Value(1).Origin != "" {
		t.Errorf("merge changed the origin of the merged layout")
	}
}

func TestMetaCompare(t *testing.T) {
	m := testMeta()
	a := Row{int64(1), "b", 1.5}
	b := Row{int64(1), "a", 1.5}

	cmp, err := m.Compare(a, b, []int{0, 1})
	if err != nil {
		t.Fatalf("unexpected Compare error, %s", err)
	}
	if cmp <= 0 {
		t.Errorf("expected a > b on (id, Name), got %d", cmp)
	}
	cmp, err = m.Compare(a, b, []int{0, 2})
	if err != nil {
		t.Fatalf("unexpected Compare error, %s", err)
	}
	if cmp != 0 {
		t.Errorf("expected a == b on (id, amount), got %d", cmp)
	}
}

func TestMetaHash(t *testing.T) {
	m := testMeta()
	m.Value(1).CaseInsensitive = true
	h1, err := m.Hash(Row{int64(7), "Alice", 1.0}, []int{0, 1})
	if err != nil {
		t.Fatalf("unexpected Hash error, %s", err)
	}
	h2, _ := m.Hash(Row{int64(7), "ALICE", 2.0}, []int{0, 1})
	h3, _ := m.Hash(Row{int64(8), "Alice", 1.0}, []int{0, 1})
	if h1 != h2 {
		t.Errorf("expected equal keys to hash equal, got %d and %d", h1, h2)
	}
	if h1 == h3 {
		t.Errorf("expected different keys to hash differently, got %d twice", h1)
	}
}

func TestMetaString(t *testing.T) {
	m := testMeta()
	r := Row{int64(3), nil, 2.5}
	expected := "[3, , 2.5]"
	if got := m.String(r); got != expected {
		t.Errorf("wrong String, expected %s, got %s", expected, got)
	}
	c := m.CloneRow(r)
	c[0] = int64(4)
	if r[0] != int64(3) {
		t.Errorf("CloneRow shares storage with the original row")
	}
}

func tagMeta(tags ...string) *Meta {
	v := NewValue("tag", TypeString)
	v.Storage = StorageIndexed
	m := NewMeta(NewValue("k", TypeInteger), v)
	for _, tag := range tags {
		m.Value(1).Dictionary.Add(tag)
	}
	return m
}

func TestEqualComparesStorage(t *testing.T) {
	indexed := tagMeta()
	normal := NewMeta(NewValue("k", TypeInteger), NewValue("tag", TypeString))
	if indexed.Equal(normal) {
		t.Errorf("expected indexed and normal layouts to differ")
	}
	if !indexed.Equal(tagMeta("x")) {
		t.Errorf("expected layouts differing only in dictionary to be equal")
	}
}

func TestConvertRow(t *testing.T) {
	a := tagMeta("apple")
	b := tagMeta("zebra", "mango")
	normal := NewMeta(NewValue("k", TypeInteger), NewValue("tag", TypeString))

	in := Row{int64(3), Index(1)}
	out, err := a.ConvertRow(b, in)
	if err != nil {
		t.Fatalf("unexpected error, %s", err)
	}
	if s, _ := a.GetString(out, 1); s != "mango" {
		t.Errorf("wrong value, expected mango, got %s", s)
	}
	if in[1] != Index(1) {
		t.Errorf("ConvertRow changed its input, got %v", in[1])
	}

	out, err = normal.ConvertRow(b, in)
	if err != nil {
		t.Fatalf("unexpected error, %s", err)
	}
	if !reflect.DeepEqual(out, Row{int64(3), "mango"}) {
		t.Errorf("wrong row, expected [3 mango], got %v", out)
	}

	same := a.Clone()
	r := Row{int64(1), Index(0)}
	if out, _ := same.ConvertRow(a, r); &out[0] != &r[0] {
		t.Errorf("expected rows sharing dictionaries to pass unchanged")
	}

	if _, err := a.ConvertRow(b, Row{int64(1), Index(9)}); err == nil {
		t.Errorf("expected an error for an unknown index, got nil")
	}
}
