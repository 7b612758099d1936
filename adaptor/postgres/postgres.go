// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package postgres provides a loader streaming rows into a Postgres table
// with COPY.
package postgres

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/compose/rowflow/adaptor"

	_ "github.com/lib/pq" // import pq driver
)

const (
	// DefaultURI is the default endpoint of Postgres on the local machine.
	// Primarily used when the loader is configured without a specific URI.
	DefaultURI = "postgres://postgres@localhost:5432?sslmode=disable"

	// DefaultTimeout bounds the initial connection.
	DefaultTimeout = 10 * time.Second

	// DefaultSchema is used for targets without a schema.
	DefaultSchema = "public"

	description = "a postgres loader copying rows into a table in one transaction"

	sampleConfig = `      loader: postgres
      target: public.orders
      options:
        uri: ${POSTGRESQL_URI}
        # truncate: false
        # timeout: 10s`
)

var (
	_ adaptor.Loader      = &Postgres{}
	_ adaptor.Describable = &Postgres{}
)

func init() {
	adaptor.Add(
		"postgres",
		func() adaptor.Loader {
			return &Postgres{}
		},
	)
}

// Postgres copies every row of a load into its target table. The rows are
// committed together once the load is complete.
type Postgres struct {
	adaptor.BaseConfig
	Truncate bool `json:"truncate" doc:"empty the table before copying, in the same transaction"`

	db *sql.DB
}

// Description for postgres loader
func (p *Postgres) Description() string {
	return description
}

// SampleConfig for postgres loader
func (p *Postgres) SampleConfig() string {
	return sampleConfig
}

// Connect opens and pings the database.
func (p *Postgres) Connect() error {
	uri := p.URI
	if uri == "" {
		uri = DefaultURI
	}
	if _, err := url.Parse(uri); err != nil {
		return adaptor.InvalidURIError{URI: uri, Err: err.Error()}
	}
	timeout, err := p.ParseTimeout(DefaultTimeout)
	if err != nil {
		return err
	}

	// there's really no way for this to error because we know the driver we're passing is
	// available.
	db, _ := sql.Open("postgres", uri)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return adaptor.ConnectError{Reason: err.Error()}
	}
	p.db = db
	return nil
}

// Close implements necessary calls to cleanup the underlying *sql.DB
func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
