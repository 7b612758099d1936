// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package row

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Index is the raw value of a column in StorageIndexed, a position in the
// column's Dictionary.
type Index uint32

// Dictionary is the side table behind StorageIndexed columns. Entries are only
// ever appended, so an Index handed out stays valid for the lifetime of the
// dictionary and clones of a Value share it.
type Dictionary struct {
	mu     sync.RWMutex
	values []interface{}
	lookup map[interface{}]Index
}

// NewDictionary creates a Dictionary holding the given values in order.
func NewDictionary(values ...interface{}) *Dictionary {
	d := &Dictionary{lookup: make(map[interface{}]Index)}
	for _, v := range values {
		d.Add(v)
	}
	return d
}

// Add returns the index of v, appending it when it is not present yet.
func (d *Dictionary) Add(v interface{}) Index {
	key := dictionaryKey(v)
	d.mu.RLock()
	idx, ok := d.lookup[key]
	d.mu.RUnlock()
	if ok {
		return idx
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.lookup[key]; ok {
		return idx
	}
	idx = Index(len(d.values))
	d.values = append(d.values, v)
	d.lookup[key] = idx
	return idx
}

// Lookup resolves idx to its native value.
func (d *Dictionary) Lookup(idx Index) (interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(idx) >= len(d.values) {
		return nil, fmt.Errorf("dictionary index %d out of range [0,%d)", idx, len(d.values))
	}
	return d.values[idx], nil
}

// Len returns the number of distinct values.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values)
}

func dictionaryKey(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case decimal.Decimal:
		return "decimal:" + t.String()
	case time.Time:
		return t.UnixNano()
	default:
		return v
	}
}
