// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package all registers every loader.
package all

import (
	// Initialize all loaders
	_ "github.com/compose/rowflow/adaptor/elasticsearch"
	_ "github.com/compose/rowflow/adaptor/file"
	_ "github.com/compose/rowflow/adaptor/mongodb"
	_ "github.com/compose/rowflow/adaptor/mysql"
	_ "github.com/compose/rowflow/adaptor/postgres"
	_ "github.com/compose/rowflow/adaptor/rabbitmq"
	_ "github.com/compose/rowflow/adaptor/rethinkdb"
	_ "github.com/compose/rowflow/adaptor/sqlite"
)
