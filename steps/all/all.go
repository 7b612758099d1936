// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package all registers every step and every loader.
package all

import (
	// Initialize all steps and loaders
	_ "github.com/compose/rowflow/adaptor/all"
	_ "github.com/compose/rowflow/steps/bulkload"
	_ "github.com/compose/rowflow/steps/dummy"
	_ "github.com/compose/rowflow/steps/filter"
	_ "github.com/compose/rowflow/steps/generator"
	_ "github.com/compose/rowflow/steps/merge"
	_ "github.com/compose/rowflow/steps/pretty"
	_ "github.com/compose/rowflow/steps/selectvalues"
	_ "github.com/compose/rowflow/steps/sortrows"
)
