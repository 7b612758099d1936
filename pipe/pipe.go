// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipe provides the bounded row channel connecting two step copies.
//
// A RowSet has exactly one producer and one consumer. Its capacity is the
// whole backpressure mechanism of a pipeline: a producer putting into a full
// RowSet blocks until the consumer takes a row or the pipeline is stopped.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/compose/rowflow/row"
)

// DefaultSize is the number of rows a RowSet buffers when the pipeline does not
// configure another size.
const DefaultSize = 300

var (
	// ErrEndOfStream is returned by Get once the producer has called SetDone and
	// every buffered row has been read.
	ErrEndOfStream = errors.New("end of stream")

	// ErrTimeout is returned by Get when no row arrived within the timeout.
	ErrTimeout = errors.New("timeout waiting for row")

	// ErrStopped is returned by Put and Get once the pipeline has been stopped.
	// A stopped Put discards its row.
	ErrStopped = errors.New("pipeline stopped")

	// ErrDone is returned by Put when the producer already called SetDone.
	ErrDone = errors.New("put on a finished row set")
)

// RowSet is a bounded FIFO of rows between one producer step copy and one
// consumer step copy.
type RowSet struct {
	From     string
	FromCopy int
	To       string
	ToCopy   int

	rows chan row.Row
	done chan struct{}
	once sync.Once

	src  *row.Meta

	mu   sync.RWMutex
	meta *row.Meta
}

// New creates a RowSet buffering up to size rows, DefaultSize when size is not
// positive.
func New(from string, fromCopy int, to string, toCopy int, size int) *RowSet {
	if size <= 0 {
		size = DefaultSize
	}
	return &RowSet{
		From:     from,
		FromCopy: fromCopy,
		To:       to,
		ToCopy:   toCopy,
		rows:     make(chan row.Row, size),
		done:     make(chan struct{}),
	}
}

// Put appends r, blocking while the RowSet is full. It returns ErrStopped,
// discarding r, as soon as ctx is done. The first put fixes the layout of the
// RowSet to a clone of meta, owned by the consumer. Rows put under another
// equal layout are re-encoded for it.
func (rs *RowSet) Put(ctx context.Context, meta *row.Meta, r row.Row) error {
	select {
	case <-ctx.Done():
		return ErrStopped
	default:
	}
	if rs.IsDone() {
		return ErrDone
	}
	r, err := rs.encode(meta, r)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ErrStopped
	case rs.rows <- r:
		return nil
	}
}

// encode fixes the layout on the first put and converts rows of other
// producer layouts equal to it. Only the producer calls it.
func (rs *RowSet) encode(meta *row.Meta, r row.Row) (row.Row, error) {
	if meta == nil || meta == rs.src {
		return r, nil
	}
	if rs.src == nil {
		rs.src = meta
		rs.mu.Lock()
		rs.meta = meta.Clone()
		rs.mu.Unlock()
		return r, nil
	}
	fixed := rs.Meta()
	if !fixed.Equal(meta) {
		return r, nil
	}
	return fixed.ConvertRow(meta, r)
}

// Get takes the next row. It waits at most timeout for one to arrive, forever
// when timeout is not positive, and returns ErrTimeout when none did.
// ErrEndOfStream means the RowSet is exhausted for good.
func (rs *RowSet) Get(ctx context.Context, timeout time.Duration) (row.Row, error) {
	select {
	case r := <-rs.rows:
		return r, nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case r := <-rs.rows:
		return r, nil
	case <-rs.done:
		// every row was put before done, anything left is already buffered
		select {
		case r := <-rs.rows:
			return r, nil
		default:
			return nil, ErrEndOfStream
		}
	case <-ctx.Done():
		return nil, ErrStopped
	case <-expired:
		return nil, ErrTimeout
	}
}

// GetImmediate takes the next row without waiting. It returns ErrTimeout when
// the RowSet is empty but not finished.
func (rs *RowSet) GetImmediate() (row.Row, error) {
	select {
	case r := <-rs.rows:
		return r, nil
	default:
	}
	select {
	case <-rs.done:
		select {
		case r := <-rs.rows:
			return r, nil
		default:
			return nil, ErrEndOfStream
		}
	default:
		return nil, ErrTimeout
	}
}

// SetDone signals that no more rows will be put. It is safe to call more than once.
func (rs *RowSet) SetDone() {
	rs.once.Do(func() { close(rs.done) })
}

// IsDone reports whether the producer has called SetDone. Rows may still be
// buffered.
func (rs *RowSet) IsDone() bool {
	select {
	case <-rs.done:
		return true
	default:
		return false
	}
}

// Meta returns the layout of the rows in this RowSet, nil until the first put.
func (rs *RowSet) Meta() *row.Meta {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.meta
}

// Size returns the number of buffered rows.
func (rs *RowSet) Size() int {
	return len(rs.rows)
}

// Capacity returns the maximum number of buffered rows.
func (rs *RowSet) Capacity() int {
	return cap(rs.rows)
}

func (rs *RowSet) String() string {
	return fmt.Sprintf("%s.%d - %s.%d", rs.From, rs.FromCopy, rs.To, rs.ToCopy)
}
