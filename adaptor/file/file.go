// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package file provides a loader copying rows to stdout or a file on disk in
// their wire format.
package file

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/compose/rowflow/adaptor"
)

const (
	// DefaultURI is used when neither uri nor target is set.
	DefaultURI = "stdout://"

	sampleConfig = `      loader: file
      target: /tmp/output.csv
      options:
        append: false
        header: true`

	description = "a loader that writes rows to stdout or a file"
)

var (
	_ adaptor.Loader      = &File{}
	_ adaptor.Describable = &File{}
)

func init() {
	adaptor.Add("file", func() adaptor.Loader {
		return &File{}
	})
}

// File writes the encoded rows unchanged. The target names the file when
// the uri does not.
type File struct {
	URI    string `json:"uri" doc:"the uri to write to, ie stdout://, file:///tmp/output"`
	Append bool   `json:"append" doc:"append to an existing file instead of replacing it"`
	Header bool   `json:"header" doc:"write the field names first, csv only"`

	f *os.File
}

// Description for file loader
func (f *File) Description() string {
	return description
}

// SampleConfig for file loader
func (f *File) SampleConfig() string {
	return sampleConfig
}

// Connect checks the uri.
func (f *File) Connect() error {
	if f.URI == "" || f.URI == DefaultURI || strings.HasPrefix(f.URI, "file://") {
		return nil
	}
	return adaptor.InvalidURIError{URI: f.URI, Err: "expected stdout:// or file://"}
}

func (f *File) open(target string) (io.Writer, error) {
	path := strings.TrimPrefix(f.URI, "file://")
	if f.URI == "" {
		path = target
	}
	if path == "" || f.URI == DefaultURI {
		return os.Stdout, nil
	}
	flags := os.O_CREATE | os.O_WRONLY
	if f.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	f.f = file
	return file, nil
}

// Load copies the rows to the file.
func (f *File) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	w, err := f.open(req.Target)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	if f.Header && req.Format == adaptor.CSV {
		cw := csv.NewWriter(w)
		cw.Write(req.Meta.FieldNames())
		cw.Flush()
		if err := cw.Error(); err != nil {
			return nil, err
		}
	}
	if _, err := io.Copy(w, req.Reader); err != nil {
		return nil, err
	}
	if f.f != nil {
		return nil, f.f.Sync()
	}
	return nil, nil
}

// Close closes the file, if one was opened.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}
