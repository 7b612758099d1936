// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqlite provides a loader inserting rows into a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	// the pure Go driver registers itself as "sqlite"
	_ "modernc.org/sqlite"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/row"
)

const (
	sampleConfig = `      loader: sqlite
      target: orders
      options:
        uri: /tmp/shop.db
        create_table: true
        batch_size: 10000`

	description = "a loader that inserts rows into a SQLite database in transactions"
)

var (
	_ adaptor.Loader      = &SQLite{}
	_ adaptor.Describable = &SQLite{}
)

func init() {
	adaptor.Add("sqlite", func() adaptor.Loader {
		return &SQLite{}
	})
}

// SQLite inserts the rows with one prepared statement, committing every
// BatchSize rows or once at the end when it is 0.
type SQLite struct {
	URI         string `json:"uri" doc:"the database file or a file: uri"`
	CreateTable bool   `json:"create_table" doc:"create the target table if it does not exist"`
	BatchSize   int    `json:"batch_size" doc:"rows per transaction, all rows in one when 0"`

	db *sql.DB
}

// Description for sqlite loader
func (s *SQLite) Description() string {
	return description
}

// SampleConfig for sqlite loader
func (s *SQLite) SampleConfig() string {
	return sampleConfig
}

// Connect opens the database.
func (s *SQLite) Connect() error {
	if s.URI == "" {
		return adaptor.InvalidURIError{URI: s.URI, Err: "no database"}
	}
	db, err := sql.Open("sqlite", s.URI)
	if err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return adaptor.ConnectError{Reason: err.Error()}
	}
	s.db = db
	return nil
}

type batch struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

func (s *SQLite) begin(ctx context.Context, insert string) (*batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return &batch{tx: tx, stmt: stmt}, nil
}

func (b *batch) commit() error {
	b.stmt.Close()
	return b.tx.Commit()
}

func (b *batch) rollback() {
	b.stmt.Close()
	b.tx.Rollback()
}

// Load inserts the rows into the target table.
func (s *SQLite) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	rr := adaptor.NewRowReader(req.Format, req.Meta, req.Reader)
	meta := rr.Meta()
	if s.CreateTable {
		if _, err := s.db.ExecContext(ctx, createStatement(req.Target, meta)); err != nil {
			return nil, errors.Wrapf(err, "create table %s", req.Target)
		}
	}

	insert := insertStatement(req.Target, meta)
	b, err := s.begin(ctx, insert)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, meta.Size())
	for n := 1; ; n++ {
		r, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err == nil {
			err = adaptor.SQLArgs(meta, r, args)
		}
		if err == nil {
			_, err = b.stmt.ExecContext(ctx, args...)
		}
		if err != nil {
			b.rollback()
			return nil, errors.Wrapf(err, "row %d", n)
		}
		if s.BatchSize > 0 && n%s.BatchSize == 0 {
			if err := b.commit(); err != nil {
				return nil, err
			}
			if b, err = s.begin(ctx, insert); err != nil {
				return nil, err
			}
		}
	}
	return nil, b.commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func quoteIdentifier(name string) string {
	return `"` + strings.Replace(name, `"`, `""`, -1) + `"`
}

func quoteTarget(target string) string {
	if schema, table, err := adaptor.SplitNamespace(target); err == nil {
		return quoteIdentifier(schema) + "." + quoteIdentifier(table)
	}
	return quoteIdentifier(target)
}

func insertStatement(target string, meta *row.Meta) string {
	cols := make([]string, meta.Size())
	marks := make([]string, meta.Size())
	for i, name := range meta.FieldNames() {
		cols[i] = quoteIdentifier(name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteTarget(target), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func columnType(t row.Type) string {
	switch t {
	case row.TypeInteger, row.TypeBoolean:
		return "INTEGER"
	case row.TypeNumber:
		return "REAL"
	case row.TypeBigNumber:
		return "NUMERIC"
	case row.TypeDate:
		return "TIMESTAMP"
	case row.TypeBinary:
		return "BLOB"
	}
	return "TEXT"
}

func createStatement(target string, meta *row.Meta) string {
	cols := make([]string, meta.Size())
	for i, v := range meta.Values() {
		cols[i] = quoteIdentifier(v.Name) + " " + columnType(v.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteTarget(target), strings.Join(cols, ", "))
}
