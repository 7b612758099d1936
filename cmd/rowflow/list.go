// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/step"
)

func runList(args []string) error {
	flagset := baseFlagSet("list")
	flagset.Usage = usageFor(flagset, "rowflow list [flags]")
	if err := flagset.Parse(args); err != nil {
		return err
	}
	list(os.Stdout)
	return nil
}

func list(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"kind", "name", "description"})
	table.SetAutoWrapText(false)

	steps := step.Steps()
	for _, name := range step.RegisteredSteps() {
		desc := ""
		if d, ok := steps[name].(step.Describable); ok {
			desc = d.Description()
		}
		table.Append([]string{"step", name, desc})
	}
	loaders := adaptor.Loaders()
	for _, name := range adaptor.RegisteredLoaders() {
		desc := ""
		if d, ok := loaders[name].(adaptor.Describable); ok {
			desc = d.Description()
		}
		table.Append([]string{"loader", name, desc})
	}
	table.Render()
}
