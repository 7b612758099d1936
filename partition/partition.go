// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package partition routes rows to step copies by key.
package partition

import (
	"fmt"
	"strings"

	"github.com/compose/rowflow/row"
	"github.com/segmentio/fasthash/fnv1a"
)

// Partitioner picks the copy, in [0, n), a row is sent to.
type Partitioner interface {
	Partition(meta *row.Meta, r row.Row, n int) (int, error)
}

// ModPartitioner partitions on the value of one field. Integers go to
// |v| mod n, every other type to the FNV-1a hash of its text form mod n.
// Nulls always go to copy 0. Equal values always land on the same copy.
type ModPartitioner struct {
	Field string
}

// MissingFieldError is returned when the partitioning field is not part of a row.
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("partitioning field '%s' not found in row", e.Field)
}

// Partition implements Partitioner.
func (p ModPartitioner) Partition(meta *row.Meta, r row.Row, n int) (int, error) {
	if n <= 1 {
		return 0, nil
	}
	i := meta.IndexOfValue(p.Field)
	if i < 0 || i >= len(r) {
		return 0, MissingFieldError{Field: p.Field}
	}
	v := meta.Value(i)
	native, err := v.Native(r[i])
	if err != nil {
		return 0, err
	}
	if native == nil || native == "" {
		return 0, nil
	}

	if v.Type == row.TypeInteger {
		k, err := v.GetInteger(native)
		if err != nil {
			return 0, err
		}
		if k < 0 {
			k = -k
		}
		return int(uint64(k) % uint64(n)), nil
	}

	s, err := v.GetString(r[i])
	if err != nil {
		return 0, err
	}
	if v.CaseInsensitive {
		s = strings.ToLower(s)
	}
	return int(fnv1a.HashString64(s) % uint64(n)), nil
}
