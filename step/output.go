// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

import (
	"context"
	"fmt"

	"github.com/compose/rowflow/partition"
	"github.com/compose/rowflow/pipe"
	"github.com/compose/rowflow/row"
)

// Distribution decides which copies of a target step receive a row.
type Distribution int

const (
	// RoundRobin sends each row to exactly one copy, rotating.
	RoundRobin Distribution = iota
	// Broadcast sends each row to every copy.
	Broadcast
	// Partitioned sends each row to the copy its key partitions to.
	Partitioned
)

func (d Distribution) String() string {
	switch d {
	case RoundRobin:
		return "round-robin"
	case Broadcast:
		return "broadcast"
	case Partitioned:
		return "partition"
	default:
		return "unknown"
	}
}

// ParseDistribution returns the Distribution named s, round-robin when s is empty.
func ParseDistribution(s string) (Distribution, error) {
	switch s {
	case "", "round-robin", "roundrobin":
		return RoundRobin, nil
	case "broadcast", "copy":
		return Broadcast, nil
	case "partition", "partitioned":
		return Partitioned, nil
	}
	return RoundRobin, fmt.Errorf("unknown distribution '%s'", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Distribution) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Distribution) UnmarshalText(b []byte) error {
	parsed, err := ParseDistribution(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// OutputGroup holds the row sets from one step copy to every copy of one
// target step, in target copy order.
type OutputGroup struct {
	To           string
	Distribution Distribution
	Partitioner  partition.Partitioner
	RowSets      []*pipe.RowSet

	next int
}

// put distributes r over the group. A stopped pipeline discards r and
// returns pipe.ErrStopped.
func (g *OutputGroup) put(ctx context.Context, meta *row.Meta, r row.Row) error {
	switch len(g.RowSets) {
	case 0:
		return nil
	case 1:
		return g.RowSets[0].Put(ctx, meta, r)
	}

	switch g.Distribution {
	case Broadcast:
		for _, rs := range g.RowSets {
			if err := rs.Put(ctx, meta, r); err != nil {
				return err
			}
		}
		return nil
	case Partitioned:
		if g.Partitioner == nil {
			return fmt.Errorf("no partitioner for hop to %s", g.To)
		}
		n, err := g.Partitioner.Partition(meta, r, len(g.RowSets))
		if err != nil {
			return err
		}
		return g.RowSets[n].Put(ctx, meta, r)
	default:
		rs := g.RowSets[g.next]
		g.next = (g.next + 1) % len(g.RowSets)
		return rs.Put(ctx, meta, r)
	}
}

func (g *OutputGroup) setDone() {
	for _, rs := range g.RowSets {
		rs.SetDone()
	}
}
