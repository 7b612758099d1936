// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adaptor

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/compose/rowflow/row"
)

// SQLArgs fills args with the values of r as database/sql arguments.
// Serializable values are passed as their JSON text.
func SQLArgs(meta *row.Meta, r row.Row, args []interface{}) error {
	for i, v := range meta.Values() {
		n, err := meta.Native(r, i)
		if err != nil {
			return err
		}
		if n != nil && v.Type == row.TypeSerializable {
			b, err := json.Marshal(n)
			if err != nil {
				return errors.Wrapf(err, "encoding %s", v.Name)
			}
			n = string(b)
		}
		args[i] = n
	}
	return nil
}
