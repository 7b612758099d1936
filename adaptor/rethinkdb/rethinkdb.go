// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rethinkdb provides a loader inserting rows as documents into a
// RethinkDB table.
package rethinkdb

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	version "github.com/hashicorp/go-version"
	r "gopkg.in/gorethink/gorethink.v3"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
)

const (
	// DefaultURI is the default endpoint for RethinkDB on the local machine.
	// Primarily used when the loader is configured without a specific URI.
	DefaultURI = "rethinkdb://127.0.0.1:28015/test"

	// DefaultTimeout is used when no timeout is configured.
	DefaultTimeout = 10 * time.Second

	description = "a rethinkdb loader inserting rows as documents in batches"

	sampleConfig = `      loader: rethinkdb
      target: orders
      options:
        uri: ${RETHINKDB_URI}
        # timeout: 30s
        # ssl: true
        # cacerts: ["/path/to/cert.pem"]
        # conflict: replace`
)

var (
	_ adaptor.Loader      = &RethinkDB{}
	_ adaptor.Describable = &RethinkDB{}

	// ErrInvalidCert is returned when a cacert holds no certificate.
	ErrInvalidCert = errors.New("cert error")

	versionMatcher = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)
)

func init() {
	adaptor.Add(
		"rethinkdb",
		func() adaptor.Loader {
			return &RethinkDB{}
		},
	)
}

// RethinkDB inserts one document per row into the table named by the target,
// in the database of the uri. A field named _id becomes the primary key id.
type RethinkDB struct {
	adaptor.BaseConfig
	SSL      bool     `json:"ssl" doc:"enable TLS connection"`
	CACerts  []string `json:"cacerts" doc:"array of root CAs to use in order to verify the server certificates"`
	Conflict string   `json:"conflict" doc:"what to do when a primary key exists, one of error, replace or update (default replace)"`

	db      string
	session *r.Session
}

// Description for rethinkdb loader
func (rt *RethinkDB) Description() string {
	return description
}

// SampleConfig for rethinkdb loader
func (rt *RethinkDB) SampleConfig() string {
	return sampleConfig
}

func (rt *RethinkDB) tlsConfig() (*tls.Config, error) {
	if !rt.SSL && len(rt.CACerts) == 0 {
		return nil, nil
	}
	conf := &tls.Config{InsecureSkipVerify: true, RootCAs: x509.NewCertPool()}
	if len(rt.CACerts) == 0 {
		return conf, nil
	}
	for _, cert := range rt.CACerts {
		c, err := os.ReadFile(cert)
		if err != nil {
			return nil, err
		}
		if ok := conf.RootCAs.AppendCertsFromPEM(c); !ok {
			return nil, ErrInvalidCert
		}
	}
	conf.InsecureSkipVerify = false
	return conf, nil
}

// connectOpts turns the uri into driver options. Several hosts are separated
// by commas.
func (rt *RethinkDB) connectOpts() (string, r.ConnectOpts, error) {
	uri := rt.URI
	if uri == "" {
		uri = DefaultURI
	}
	u, err := url.Parse(uri)
	if err != nil {
		return uri, r.ConnectOpts{}, adaptor.InvalidURIError{URI: uri, Err: err.Error()}
	}
	if u.Host == "" {
		return uri, r.ConnectOpts{}, adaptor.InvalidURIError{URI: uri, Err: "no host"}
	}
	timeout, err := rt.ParseTimeout(DefaultTimeout)
	if err != nil {
		return uri, r.ConnectOpts{}, err
	}
	opts := r.ConnectOpts{
		Addresses:    strings.Split(u.Host, ","),
		Database:     strings.TrimPrefix(u.Path, "/"),
		Timeout:      timeout,
		WriteTimeout: timeout,
		MaxIdle:      10,
		MaxOpen:      20,
	}
	if u.User != nil {
		if pwd, ok := u.User.Password(); ok {
			opts.Username = u.User.Username()
			opts.Password = pwd
		}
	}
	return uri, opts, nil
}

// Connect opens the session and checks the server is at least 2.0.
func (rt *RethinkDB) Connect() error {
	uri, opts, err := rt.connectOpts()
	if err != nil {
		return err
	}
	if opts.TLSConfig, err = rt.tlsConfig(); err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}
	switch rt.Conflict {
	case "", "error", "replace", "update":
	default:
		return fmt.Errorf("unknown conflict %q", rt.Conflict)
	}

	log.With("addresses", opts.Addresses).With("db", opts.Database).Debugln("connection info")
	session, err := r.Connect(opts)
	if err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}
	r.Log = log.Orig()
	rt.db, rt.session = opts.Database, session

	raw, err := serverVersion(session)
	if err != nil {
		return adaptor.VersionError{URI: uri, Err: err.Error()}
	}
	return checkVersion(uri, raw)
}

func serverVersion(s *r.Session) (string, error) {
	cursor, err := r.DB("rethinkdb").Table("server_status").Run(s)
	if err != nil {
		return "", err
	}
	defer cursor.Close()
	if cursor.IsNil() {
		return "", errors.New("no rows returned from the server_status table")
	}
	var status struct {
		Process struct {
			Version string `gorethink:"version"`
		} `gorethink:"process"`
	}
	cursor.Next(&status)
	return status.Process.Version, nil
}

// checkVersion reads a server_status version like "rethinkdb 2.3.5~0xenial"
// and requires at least 2.0.
func checkVersion(uri, raw string) error {
	if raw == "" {
		return adaptor.VersionError{URI: uri, Err: "process.version key missing"}
	}
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return adaptor.VersionError{URI: uri, V: raw, Err: "malformed version string"}
	}
	s := versionMatcher.FindString(fields[1])
	if s == "" {
		return adaptor.VersionError{URI: uri, V: raw, Err: "malformed version string"}
	}
	v, err := version.NewVersion(s)
	if err != nil {
		return adaptor.VersionError{URI: uri, V: raw, Err: err.Error()}
	}
	constraint, _ := version.NewConstraint(">= 2.0")
	if !constraint.Check(v) {
		return adaptor.VersionError{URI: uri, V: raw, Err: fmt.Sprintf("version too old, expected %s", constraint)}
	}
	return nil
}

// Close closes the session without waiting for noreply writes.
func (rt *RethinkDB) Close() error {
	if rt.session == nil {
		return nil
	}
	err := rt.session.Close(r.CloseOpts{NoReplyWait: false})
	rt.session = nil
	return err
}
