// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sortrows

import (
	"github.com/compose/rowflow/row"
)

// Key is one field rows are ordered on.
type Key struct {
	Field           string `json:"field" yaml:"field"`
	Descending      bool   `json:"descending" yaml:"descending"`
	CaseInsensitive bool   `json:"case_insensitive" yaml:"case_insensitive"`
}

// Keys orders rows on several fields, the first difference decides.
type Keys []Key

// Bind resolves k in meta. It returns a layout carrying the direction of
// every key, to be used with row.Meta.Compare, and the key positions.
func (k Keys) Bind(meta *row.Meta) (*row.Meta, []int, error) {
	cmp := meta.Clone()
	fields := make([]int, 0, len(k))
	for _, key := range k {
		i := meta.IndexOfValue(key.Field)
		if i < 0 {
			return nil, nil, row.NoSuchValueError{Name: key.Field}
		}
		v := cmp.Value(i)
		v.SortedDescending = key.Descending
		v.CaseInsensitive = v.CaseInsensitive || key.CaseInsensitive
		fields = append(fields, i)
	}
	return cmp, fields, nil
}
