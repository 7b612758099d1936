// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mysql provides a loader streaming rows into a MySQL table with
// LOAD DATA LOCAL INFILE.
package mysql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/compose/rowflow/adaptor"
)

const (
	// DefaultURI is the default endpoint of MySQL on the local machine.
	// Primarily used when the loader is configured without a specific URI.
	DefaultURI = "mysql://root@localhost:3306/test"

	// DefaultTimeout bounds the initial connection.
	DefaultTimeout = 10 * time.Second

	tlsConfigName = "rowflow"

	description = "a mysql loader streaming rows into a table with LOAD DATA LOCAL INFILE"

	sampleConfig = `      loader: mysql
      target: orders
      options:
        uri: ${MYSQL_URI}
        # duplicates: replace
        # foreign_key_checks: false
        # cacert: /path/to/ca.pem
        # servername: db.example.com`
)

var (
	_ adaptor.Loader      = &MySQL{}
	_ adaptor.Describable = &MySQL{}
)

func init() {
	adaptor.Add(
		"mysql",
		func() adaptor.Loader {
			return &MySQL{ForeignKeyChecks: true}
		},
	)
}

// MySQL streams the rows of a load to the server through a registered
// reader. The server decides the column conversions, its warnings are
// reported once the load finished.
type MySQL struct {
	adaptor.BaseConfig
	Duplicates       string `json:"duplicates" doc:"replace or ignore rows with duplicate keys, an error otherwise"`
	ForeignKeyChecks bool   `json:"foreign_key_checks" doc:"check foreign keys while loading"`
	CACert           string `json:"cacert" doc:"path to the root certificate of the server"`
	ServerName       string `json:"servername" doc:"verify the server certificate for this name, skipped when empty"`

	db *sql.DB
}

// Description for mysql loader
func (m *MySQL) Description() string {
	return description
}

// SampleConfig for mysql loader
func (m *MySQL) SampleConfig() string {
	return sampleConfig
}

// dsn turns a mysql:// uri into a driver DSN, other values are taken as a
// DSN already.
func dsn(uri string) (*mysql.Config, error) {
	if !strings.HasPrefix(uri, "mysql://") {
		return mysql.ParseDSN(uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	if u.User != nil {
		b.WriteString(u.User.Username())
		if pass, ok := u.User.Password(); ok {
			b.WriteString(":" + pass)
		}
		b.WriteString("@")
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	fmt.Fprintf(&b, "tcp(%s)%s", u.Host, path)
	if u.RawQuery != "" {
		b.WriteString("?" + u.RawQuery)
	}
	return mysql.ParseDSN(b.String())
}

// customTLS registers the root certificate for the connection.
func (m *MySQL) customTLS(cfg *mysql.Config) error {
	if m.CACert == "" {
		return nil
	}
	pem, err := os.ReadFile(m.CACert)
	if err != nil {
		return err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return errors.New("no certificate found in cacert")
	}
	conf := &tls.Config{RootCAs: pool, ServerName: m.ServerName, InsecureSkipVerify: m.ServerName == ""}
	if err := mysql.RegisterTLSConfig(tlsConfigName, conf); err != nil {
		return err
	}
	cfg.TLSConfig = tlsConfigName
	return nil
}

// Connect opens and pings the database.
func (m *MySQL) Connect() error {
	uri := m.URI
	if uri == "" {
		uri = DefaultURI
	}
	switch m.Duplicates {
	case "", "replace", "ignore":
	default:
		return fmt.Errorf("unknown duplicates handling '%s', expected replace or ignore", m.Duplicates)
	}
	cfg, err := dsn(uri)
	if err != nil {
		return adaptor.InvalidURIError{URI: uri, Err: err.Error()}
	}
	if cfg.Timeout, err = m.ParseTimeout(DefaultTimeout); err != nil {
		return err
	}
	if err := m.customTLS(cfg); err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return adaptor.ConnectError{Reason: err.Error()}
	}
	m.db = db
	return nil
}

// Close implements necessary calls to cleanup the underlying *sql.DB
func (m *MySQL) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
