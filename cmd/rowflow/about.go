// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/step"
)

type describable interface {
	SampleConfig() string
	Description() string
}

func runAbout(args []string) error {
	flagset := baseFlagSet("about")
	flagset.Usage = usageFor(flagset, "rowflow about [flags] <step|loader>")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	args = flagset.Args()
	if len(args) == 0 {
		return errors.New("missing step or loader name")
	}
	return about(os.Stdout, args[0])
}

func about(w io.Writer, name string) error {
	var (
		kind string
		impl interface{}
	)
	if s, ok := step.Steps()[name]; ok {
		kind, impl = "step", s
	} else if l, ok := adaptor.Loaders()[name]; ok {
		kind, impl = "loader", l
	} else {
		return fmt.Errorf("no step or loader named '%s' exists", name)
	}

	fmt.Fprintf(w, "%s %s", kind, name)
	d, ok := impl.(describable)
	if ok {
		fmt.Fprintf(w, " - %s", d.Description())
	}
	fmt.Fprintln(w)
	if fields := docFields(impl); len(fields) > 0 {
		fmt.Fprintf(w, "\nOPTIONS\n%s", strings.Join(fields, ""))
	}
	if ok {
		fmt.Fprintf(w, "\nSAMPLE\n%s\n", d.SampleConfig())
	}
	return nil
}

// docFields lists the configuration keys of impl with their doc tags,
// following embedded structs.
func docFields(impl interface{}) []string {
	t := reflect.TypeOf(impl)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			out = append(out, docFields(reflect.New(f.Type).Interface())...)
			continue
		}
		key := strings.Split(f.Tag.Get("json"), ",")[0]
		if key == "" || key == "-" || f.PkgPath != "" {
			continue
		}
		out = append(out, fmt.Sprintf("  %-20s %s\n", key, f.Tag.Get("doc")))
	}
	return out
}
