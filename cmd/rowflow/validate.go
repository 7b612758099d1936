// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
)

func runValidate(args []string) error {
	flagset := baseFlagSet("validate")
	flagset.Usage = usageFor(flagset, "rowflow validate [flags] <pipeline.yaml>")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	file := pipelineArg(flagset.Args())
	f, err := loadPipeline(file)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if _, err := f.metricsInterval(); err != nil {
		return err
	}
	fmt.Printf("%s OK, %d steps and %d hops\n", file, len(f.Steps), len(f.Hops))
	return nil
}
