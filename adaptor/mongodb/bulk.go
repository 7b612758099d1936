// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mongodb

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/row"
)

const maxObjSize int = 1000

// Load writes the rows in bulks of maxObjSize documents.
func (m *MongoDB) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	db, coll := splitTarget(req.Target)
	s := m.session.Copy()
	defer s.Close()
	c := s.DB(db).C(coll)
	logger := log.With("collection", req.Target)

	rr := adaptor.NewRowReader(req.Format, req.Meta, req.Reader)
	meta := rr.Meta()
	idx := meta.IndexOfValue("_id")
	if m.Upsert && idx < 0 {
		return nil, errors.New("upsert needs an _id field")
	}

	var (
		warnings []string
		bulk     = c.Bulk()
		pending  int
	)
	for n := 1; ; n++ {
		r, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return warnings, errors.Wrapf(err, "row %d", n)
		}
		doc := document(meta, r)
		if m.Upsert {
			bulk.Upsert(bson.M{"_id": doc[idx].Value}, doc)
		} else {
			bulk.Insert(doc)
		}
		if pending++; pending >= maxObjSize {
			if warnings, err = flush(logger, bulk, warnings); err != nil {
				return warnings, err
			}
			bulk, pending = c.Bulk(), 0
		}
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
	}
	if pending == 0 {
		return warnings, nil
	}
	return flush(logger, bulk, warnings)
}

// flush runs the bulk. Duplicate keys stop an ordered bulk, so it is run
// again unordered to write the remaining documents and the duplicates are
// reported as a warning.
func flush(logger log.Logger, bulk *mgo.Bulk, warnings []string) ([]string, error) {
	logger.Debugln("flushing bulk")
	res, err := bulk.Run()
	if err != nil && !mgo.IsDup(err) {
		logger.Errorf("flush error, %s", err)
		return warnings, err
	}
	if mgo.IsDup(err) {
		bulk.Unordered()
		if res, err = bulk.Run(); err != nil && !mgo.IsDup(err) {
			logger.Errorf("flush error with unordered, %s", err)
			return warnings, err
		}
		warnings = append(warnings, fmt.Sprintf("duplicate keys skipped, %s", err))
	}
	if res != nil {
		logger.With("matched", res.Matched).With("modified", res.Modified).Debugln("flush complete")
	}
	return warnings, nil
}

func splitTarget(target string) (string, string) {
	db, coll, err := adaptor.SplitNamespace(target)
	if err != nil {
		// the database of the uri
		return "", target
	}
	return db, coll
}

// document keeps the field order of the row. Big numbers are stored as their
// decimal text.
func document(meta *row.Meta, r row.Row) bson.D {
	doc := make(bson.D, meta.Size())
	for i, v := range meta.Values() {
		val := r[i]
		if d, ok := val.(decimal.Decimal); ok {
			val = d.String()
		}
		doc[i] = bson.DocElem{Name: v.Name, Value: val}
	}
	return doc
}
