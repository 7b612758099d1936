// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adaptor

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/compose/rowflow/row"
)

var _ Loader = &Mock{}

// ErrMockFailure is returned by a failing Mock without an Err.
var ErrMockFailure = errors.New("mock load failure")

func init() {
	Add("mock", func() Loader {
		return &Mock{}
	})
}

// Mock reads every row of a load into memory. It can be told to fail.
type Mock struct {
	// ConnectErr is returned from Connect.
	ConnectErr error `json:"-"`
	// FailAfter makes Load fail with Err once it read that many rows.
	FailAfter int   `json:"fail_after"`
	Err       error `json:"-"`
	// Stall makes Load stop reading without returning until ctx is done.
	Stall bool `json:"stall"`
	// Warn is reported as a warning once the load finished.
	Warn []string `json:"warn"`

	mu     sync.Mutex
	rows   []row.Row
	meta   *row.Meta
	loads  int
	closes int
}

// Connect implements Loader.
func (m *Mock) Connect() error { return m.ConnectErr }

// Load implements Loader.
func (m *Mock) Load(ctx context.Context, req Request) ([]string, error) {
	m.mu.Lock()
	m.loads++
	m.mu.Unlock()

	rr := NewRowReader(req.Format, req.Meta, req.Reader)
	for {
		if m.Stall {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		r, err := rr.Read()
		if err == io.EOF {
			return m.Warn, nil
		}
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.rows = append(m.rows, r)
		m.meta = rr.Meta()
		n := len(m.rows)
		m.mu.Unlock()
		if m.FailAfter > 0 && n >= m.FailAfter {
			if m.Err == nil {
				return nil, ErrMockFailure
			}
			return nil, m.Err
		}
	}
}

// Close implements Loader.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// Rows returns the rows loaded so far.
func (m *Mock) Rows() []row.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]row.Row(nil), m.rows...)
}

// Loads returns how often Load was called.
func (m *Mock) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Closes returns how often Close was called.
func (m *Mock) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
