// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mongodb provides a loader inserting rows as documents with the
// MongoDB Bulk API.
package mongodb

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"time"

	"gopkg.in/mgo.v2"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
)

const (
	// DefaultURI is the default endpoint of MongoDB on the local machine.
	// Primarily used when the loader is configured without a specific URI.
	DefaultURI = "mongodb://127.0.0.1:27017/test"

	// DefaultSessionTimeout is the default timeout after which the
	// session times out when unable to connect to the provided URI.
	DefaultSessionTimeout = 10 * time.Second

	description = "a mongodb loader inserting rows as documents in bulk"

	sampleConfig = `      loader: mongodb
      target: shop.orders
      options:
        uri: ${MONGODB_URI}
        # timeout: 30s
        # ssl: true
        # cacerts: ["/path/to/cert.pem"]
        # wc: 1
        # fsync: false
        # upsert: false`
)

var (
	_ adaptor.Loader      = &MongoDB{}
	_ adaptor.Describable = &MongoDB{}

	// ErrInvalidCert is returned when a cacert holds no certificate.
	ErrInvalidCert = errors.New("cert error")
)

func init() {
	adaptor.Add(
		"mongodb",
		func() adaptor.Loader {
			return &MongoDB{}
		},
	)
}

// MongoDB inserts one document per row, with the field names as keys. With
// Upsert a row replaces the document with the same _id.
type MongoDB struct {
	adaptor.BaseConfig
	Ssl     bool     `json:"ssl" doc:"enable TLS connection"`
	CACerts []string `json:"cacerts" doc:"array of root CAs to use in order to verify the server certificates"`
	Wc      int      `json:"wc" doc:"The write concern to use for writes, Int, indicating the minimum number of servers to write to before returning success/failure"`
	FSync   bool     `json:"fsync" doc:"When writing, should we flush to disk before returning success"`
	Upsert  bool     `json:"upsert" doc:"replace the documents with the _id of a row instead of inserting"`

	session *mgo.Session
}

// Description for mongodb loader
func (m *MongoDB) Description() string {
	return description
}

// SampleConfig for mongodb loader
func (m *MongoDB) SampleConfig() string {
	return sampleConfig
}

func (m *MongoDB) tlsConfig() (*tls.Config, error) {
	if !m.Ssl && len(m.CACerts) == 0 {
		return nil, nil
	}
	conf := &tls.Config{InsecureSkipVerify: true, RootCAs: x509.NewCertPool()}
	if len(m.CACerts) == 0 {
		return conf, nil
	}
	for _, cert := range m.CACerts {
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

// Connect dials the servers of the uri.
func (m *MongoDB) Connect() error {
	uri := m.URI
	if uri == "" {
		uri = DefaultURI
	}
	dialInfo, err := mgo.ParseURL(uri)
	if err != nil {
		return adaptor.InvalidURIError{URI: uri, Err: err.Error()}
	}
	if dialInfo.Timeout, err = m.ParseTimeout(DefaultSessionTimeout); err != nil {
		return err
	}
	tlsConfig, err := m.tlsConfig()
	if err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}
	if tlsConfig != nil {
		dialInfo.DialServer = func(addr *mgo.ServerAddr) (net.Conn, error) {
			return tls.Dial("tcp", addr.String(), tlsConfig)
		}
	}

	session, err := mgo.DialWithInfo(dialInfo)
	if err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}

	mgo.SetLogger(mgoLogger{log.With("loader", "mongodb")})
	safety := mgo.Safe{FSync: m.FSync}
	if m.Wc > 0 {
		safety.W = m.Wc
	}
	session.EnsureSafe(&safety)
	session.SetSocketTimeout(time.Hour)
	m.session = session
	return nil
}

// Close closes the session.
func (m *MongoDB) Close() error {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	return nil
}

// mgoLogger hands the driver messages to the debug log.
type mgoLogger struct {
	log.Logger
}

func (l mgoLogger) Output(calldepth int, s string) error {
	l.Debugln(s)
	return nil
}
