// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package postgres

import (
	"context"
	"database/sql"
	"io"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/row"
)

// Load copies the rows into the target table.
func (p *Postgres) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	rr := adaptor.NewRowReader(req.Format, req.Meta, req.Reader)
	meta := rr.Meta()
	schema, table := splitTarget(req.Target)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	n, err := copyRows(ctx, tx, schema, table, meta, rr, p.Truncate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.With("table", req.Target).With("rows", n).Debugln("COPY")
	return nil, nil
}

func copyRows(ctx context.Context, tx *sql.Tx, schema, table string, meta *row.Meta, rr *adaptor.RowReader, truncate bool) (int, error) {
	if truncate {
		if _, err := tx.ExecContext(ctx, truncateStatement(schema, table)); err != nil {
			return 0, errors.Wrap(err, "truncate")
		}
	}
	stmt, err := tx.PrepareContext(ctx, copyStatement(schema, table, meta))
	if err != nil {
		return 0, errors.Wrap(err, "prepare copy")
	}
	defer stmt.Close()

	args := make([]interface{}, meta.Size())
	n := 0
	for {
		r, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err == nil {
			err = adaptor.SQLArgs(meta, r, args)
		}
		if err == nil {
			_, err = stmt.ExecContext(ctx, args...)
		}
		if err != nil {
			return n, errors.Wrapf(err, "row %d", n+1)
		}
		n++
	}
	// an Exec without arguments ends the copy and reports its errors
	if _, err := stmt.ExecContext(ctx); err != nil {
		return n, errors.Wrap(err, "copy")
	}
	return n, nil
}

func splitTarget(target string) (string, string) {
	schema, table, err := adaptor.SplitNamespace(target)
	if err != nil {
		return DefaultSchema, target
	}
	return schema, table
}

func copyStatement(schema, table string, meta *row.Meta) string {
	return pq.CopyInSchema(schema, table, meta.FieldNames()...)
}

func truncateStatement(schema, table string) string {
	return "TRUNCATE " + pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}
