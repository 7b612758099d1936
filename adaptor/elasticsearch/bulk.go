// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elasticsearch

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	elastic "gopkg.in/olivere/elastic.v5"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/row"
)

// Load indexes the rows in bulks of BulkActions documents. Documents the
// cluster rejects are reported as warnings.
func (e *Elasticsearch) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	index, typ := splitTarget(req.Target)
	rr := adaptor.NewRowReader(req.Format, req.Meta, req.Reader)
	meta := rr.Meta()
	idx := -1
	if e.IDField != "" {
		if idx = meta.IndexOfValue(e.IDField); idx < 0 {
			return nil, row.NoSuchValueError{Name: e.IDField}
		}
	}

	var warnings []string
	bulk := e.client.Bulk().Index(index).Type(typ)
	for n := 1; ; n++ {
		r, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return warnings, errors.Wrapf(err, "row %d", n)
		}
		id, doc, err := document(meta, r, idx)
		if err != nil {
			return warnings, errors.Wrapf(err, "row %d", n)
		}
		br := elastic.NewBulkIndexRequest().Doc(doc)
		if id != "" {
			br.Id(id)
		}
		bulk.Add(br)
		if bulk.NumberOfActions() >= e.BulkActions {
			if warnings, err = e.flush(ctx, bulk, warnings); err != nil {
				return warnings, err
			}
		}
	}
	if bulk.NumberOfActions() == 0 {
		return warnings, nil
	}
	return e.flush(ctx, bulk, warnings)
}

func (e *Elasticsearch) flush(ctx context.Context, bulk *elastic.BulkService, warnings []string) ([]string, error) {
	resp, err := bulk.Do(ctx)
	if err != nil {
		e.logger.Errorln(err)
		return warnings, err
	}
	e.logger.With("took", fmt.Sprintf("%dms", resp.Took)).
		With("succeeded", len(resp.Succeeded())).
		With("failed", len(resp.Failed())).
		Debugln("_bulk flush completed")
	for _, item := range resp.Failed() {
		warnings = append(warnings, failure(item))
	}
	return warnings, nil
}

func failure(item *elastic.BulkResponseItem) string {
	reason := fmt.Sprintf("status %d", item.Status)
	if item.Error != nil {
		reason = fmt.Sprintf("%s, %s", item.Error.Type, item.Error.Reason)
	}
	return fmt.Sprintf("document %s/%s/%s failed, %s", item.Index, item.Type, item.Id, reason)
}

func splitTarget(target string) (string, string) {
	index, typ, err := adaptor.SplitNamespace(target)
	if err != nil {
		return target, DefaultType
	}
	return index, typ
}

// document returns the row as a document and the text of field idx as its
// id, the id field is left out of the document.
func document(meta *row.Meta, r row.Row, idx int) (string, map[string]interface{}, error) {
	var id string
	doc := make(map[string]interface{}, meta.Size())
	for i, v := range meta.Values() {
		if i == idx {
			if r[i] == nil {
				continue
			}
			s, err := v.GetString(r[i])
			if err != nil {
				return "", nil, err
			}
			id = s
			continue
		}
		doc[v.Name] = r[i]
	}
	return id, doc, nil
}
