// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import (
	"testing"

	"github.com/compose/rowflow/row"
	"github.com/segmentio/fasthash/fnv1a"
)

var meta = row.NewMeta(
	row.NewValue("id", row.TypeInteger),
	row.NewValue("name", row.TypeString),
)

var partitionTests = []struct {
	name     string
	field    string
	r        row.Row
	n        int
	expected int
}{
	{"integer", "id", row.Row{int64(7), "a"}, 3, 1},
	{"negative integer", "id", row.Row{int64(-7), "a"}, 3, 1},
	{"null", "id", row.Row{nil, "a"}, 3, 0},
	{"single copy", "name", row.Row{int64(1), "a"}, 1, 0},
	{"string", "name", row.Row{int64(1), "alice"}, 4, int(fnv1a.HashString64("alice") % 4)},
	{"empty string", "name", row.Row{int64(1), ""}, 4, 0},
}

func TestModPartitioner(t *testing.T) {
	for _, pt := range partitionTests {
		got, err := ModPartitioner{Field: pt.field}.Partition(meta, pt.r, pt.n)
		if err != nil {
			t.Errorf("[%s] unexpected error, %s", pt.name, err)
			continue
		}
		if got != pt.expected {
			t.Errorf("[%s] wrong partition, expected %d, got %d", pt.name, pt.expected, got)
		}
	}
}

func TestModPartitionerStable(t *testing.T) {
	p := ModPartitioner{Field: "name"}
	first, _ := p.Partition(meta, row.Row{int64(1), "bob"}, 5)
	for i := 0; i < 10; i++ {
		got, _ := p.Partition(meta, row.Row{int64(i), "bob"}, 5)
		if got != first {
			t.Fatalf("equal keys routed to different copies, %d and %d", first, got)
		}
	}
}

func TestModPartitionerIndexed(t *testing.T) {
	v := row.NewValue("name", row.TypeString)
	v.Storage = row.StorageIndexed
	m := row.NewMeta(v)
	v = m.Value(0)
	raw, err := v.ConvertFromString("carol")
	if err != nil {
		t.Fatalf("unexpected conversion error, %s", err)
	}
	got, err := ModPartitioner{Field: "name"}.Partition(m, row.Row{raw}, 4)
	if err != nil {
		t.Fatalf("unexpected error, %s", err)
	}
	if expected := int(fnv1a.HashString64("carol") % 4); got != expected {
		t.Errorf("wrong partition, expected %d, got %d", expected, got)
	}
}

func TestModPartitionerMissingField(t *testing.T) {
	_, err := ModPartitioner{Field: "nope"}.Partition(meta, row.Row{int64(1), "a"}, 2)
	if _, ok := err.(MissingFieldError); !ok {
		t.Errorf("wrong error, expected MissingFieldError, got %v", err)
	}
}
