// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rethinkdb

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	r "gopkg.in/gorethink/gorethink.v3"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/row"
)

const maxObjSize int = 1000

// Load inserts the rows in batches of maxObjSize documents.
func (rt *RethinkDB) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	db, table := splitTarget(rt.db, req.Target)
	term := r.DB(db).Table(table)
	logger := log.With("db", db).With("table", table)
	conflict := rt.Conflict
	if conflict == "" {
		conflict = "replace"
	}

	rr := adaptor.NewRowReader(req.Format, req.Meta, req.Reader)
	meta := rr.Meta()

	var (
		warnings []string
		docs     = make([]map[string]interface{}, 0, maxObjSize)
	)
	flush := func() error {
		logger.With("doc_count", len(docs)).Debugln("flushing batch")
		resp, err := term.Insert(docs, r.InsertOpts{Conflict: conflict}).RunWrite(rt.session)
		if err != nil {
			logger.Errorf("flush error, %s", err)
			return err
		}
		warning, err := handleResponse(&resp)
		if err != nil {
			return err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		docs = docs[:0]
		return nil
	}
	for n := 1; ; n++ {
		rw, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return warnings, errors.Wrapf(err, "row %d", n)
		}
		docs = append(docs, document(meta, rw))
		if len(docs) >= maxObjSize {
			if err := flush(); err != nil {
				return warnings, err
			}
		}
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
	}
	if len(docs) == 0 {
		return warnings, nil
	}
	return warnings, flush()
}

// handleResponse turns write errors into an error, except duplicate primary
// keys which only happen with conflict error and are reported as a warning.
func handleResponse(resp *r.WriteResponse) (string, error) {
	if resp.Errors == 0 {
		return "", nil
	}
	if strings.Contains(resp.FirstError, "Duplicate primary key") {
		return fmt.Sprintf("%d duplicate primary keys skipped", resp.Errors), nil
	}
	return "", fmt.Errorf("problem inserting docs, %s", resp.FirstError)
}

// splitTarget reads db.table, a bare table lives in the database of the uri.
func splitTarget(def, target string) (string, string) {
	db, table, err := adaptor.SplitNamespace(target)
	if err != nil {
		return def, target
	}
	return db, table
}

// document names every value by its field. An _id field becomes id unless
// the row has an id of its own. Big numbers are stored as their decimal text.
func document(meta *row.Meta, rw row.Row) map[string]interface{} {
	doc := make(map[string]interface{}, meta.Size())
	for i, v := range meta.Values() {
		val := rw[i]
		if d, ok := val.(decimal.Decimal); ok {
			val = d.String()
		}
		doc[v.Name] = val
	}
	if id, ok := doc["_id"]; ok && meta.IndexOfValue("id") < 0 {
		doc["id"] = id
		delete(doc, "_id")
	}
	return doc
}
