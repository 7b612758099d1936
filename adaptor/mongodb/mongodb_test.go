// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mongodb

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"gopkg.in/mgo.v2/bson"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/row"
	"github.com/compose/rowflow/step"
)

func TestDescription(t *testing.T) {
	m := MongoDB{}
	if m.Description() != description {
		t.Errorf("Description() mismatch, expected %s, got %s", description, m.Description())
	}
}

func TestSampleConfig(t *testing.T) {
	m := MongoDB{}
	if m.SampleConfig() != sampleConfig {
		t.Errorf("SampleConfig() mismatch, expected %s, got %s", sampleConfig, m.SampleConfig())
	}
}

var targetTests = []struct {
	target, db, coll string
}{
	{"orders", "", "orders"},
	{"shop.orders", "shop", "orders"},
	{"shop.orders.2017", "shop", "orders.2017"},
}

func TestSplitTarget(t *testing.T) {
	for _, tt := range targetTests {
		db, coll := splitTarget(tt.target)
		if db != tt.db || coll != tt.coll {
			t.Errorf("[%s] expected %s and %s, got %s and %s", tt.target, tt.db, tt.coll, db, coll)
		}
	}
}

func TestDocument(t *testing.T) {
	meta := row.NewMeta(
		row.NewValue("_id", row.TypeInteger),
		row.NewValue("total", row.TypeBigNumber),
		row.NewValue("note", row.TypeString),
	)
	got := document(meta, row.Row{int64(7), decimal.RequireFromString("10.25"), nil})
	expected := bson.D{{Name: "_id", Value: int64(7)}, {Name: "total", Value: "10.25"}, {Name: "note", Value: nil}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("wrong document, expected %v, got %v", expected, got)
	}
}

var connectErrorTests = []struct {
	name string
	m    *MongoDB
	err  error
}{
	{"bad uri", &MongoDB{BaseConfig: adaptor.BaseConfig{URI: "mongodb://localhost:27017?bogus"}}, nil},
	{"bad timeout", &MongoDB{BaseConfig: adaptor.BaseConfig{Timeout: "soon"}}, adaptor.InvalidTimeoutError{Timeout: "soon"}},
	{"missing cert", &MongoDB{CACerts: []string{"/does/not/exist.pem"}}, nil},
}

func TestConnectErrors(t *testing.T) {
	for _, ct := range connectErrorTests {
		err := ct.m.Connect()
		if err == nil {
			t.Errorf("[%s] expected an error", ct.name)
			continue
		}
		if ct.err != nil && err != ct.err {
			t.Errorf("[%s] wrong error, expected %v, got %v", ct.name, ct.err, err)
		}
	}
}

func TestRegistered(t *testing.T) {
	l, err := adaptor.GetLoader("mongodb", step.Config{"uri": DefaultURI, "wc": 2, "upsert": true})
	if err != nil {
		t.Fatalf("unexpected GetLoader error, %s", err)
	}
	if m, ok := l.(*MongoDB); !ok || m.URI != DefaultURI || m.Wc != 2 || !m.Upsert {
		t.Errorf("misconfigured loader, got %+v", l)
	}
}
