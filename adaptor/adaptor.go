// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package adaptor defines the loaders the bulkload step streams rows into,
// their registry and the wire formats rows are streamed in.
package adaptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/compose/rowflow/row"
)

// ErrNamespaceMalformed represents the error to be returned when an invalid namespace is given.
var ErrNamespaceMalformed = errors.New("malformed namespace, expected a '.' deliminated string")

// ErrNotFound gives the details of the failed loader
type ErrNotFound struct {
	Name string
}

func (a ErrNotFound) Error() string {
	return fmt.Sprintf("loader '%s' not found in registry", a.Name)
}

// ErrFormatNotSupported is returned by loaders that can not read a format.
type ErrFormatNotSupported struct {
	Name   string
	Format Format
}

func (a ErrFormatNotSupported) Error() string {
	return fmt.Sprintf("'%s' does not support the %s format", a.Name, a.Format)
}

// Request is one bulk load: the rows written to Reader until it returns
// io.EOF go into Target.
type Request struct {
	Target string
	Meta   *row.Meta
	Format Format
	Reader io.Reader
}

// A Loader streams rows into an external system.
//
// Connect is called once before any row flows, Close once at the end
// whether the load succeeded or not. Load runs on its own goroutine and
// blocks until Reader is exhausted or fails. It returns the warnings the
// sink reported along the way.
type Loader interface {
	Connect() error
	Load(ctx context.Context, req Request) ([]string, error)
	Close() error
}

// Describable defines the interface that all loaders must follow in order to support
// the help functions.
// SampleConfig() returns an example YAML structure to configure the loader
// Description() provides contextual information for what the loader is for
type Describable interface {
	SampleConfig() string
	Description() string
}

// BaseConfig is a standard typed config struct to use for as general purpose config for most databases.
type BaseConfig struct {
	URI     string `json:"uri"`
	Timeout string `json:"timeout"`
}

// SplitNamespace splits a target like db.table on its first '.'.
func SplitNamespace(ns string) (string, string, error) {
	fields := strings.SplitN(ns, ".", 2)

	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return "", "", ErrNamespaceMalformed
	}
	return fields[0], fields[1], nil
}
