// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elasticsearch provides a loader indexing rows as documents through
// the _bulk API.
package elasticsearch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	version "github.com/hashicorp/go-version"
	elastic "gopkg.in/olivere/elastic.v5"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
)

const (
	// DefaultURI is the default endpoint of Elasticsearch on the local machine.
	DefaultURI = "http://127.0.0.1:9200"

	// DefaultTimeout is used for every request when no timeout is set.
	DefaultTimeout = 30 * time.Second

	// DefaultType is the document type of targets without one.
	DefaultType = "doc"

	// DefaultBulkActions is the number of documents sent per _bulk request.
	DefaultBulkActions = 1000

	supportedVersions = ">= 5.0"

	description  = "an elasticsearch loader indexing rows as documents"
	sampleConfig = `      loader: elasticsearch
      target: shop.order
      options:
        uri: ${ELASTICSEARCH_URI}
        # id_field: id
        # bulk_actions: 1000
        # timeout: 10s # defaults to 30s
        # aws_access_key: XXX # used for signing requests to AWS Elasticsearch service
        # aws_access_secret: XXX # used for signing requests to AWS Elasticsearch service`
)

var (
	_ adaptor.Loader      = &Elasticsearch{}
	_ adaptor.Describable = &Elasticsearch{}
)

// Elasticsearch indexes one document per row into the index and type named
// by the target. The IDField is used as the document id and left out of the
// document.
type Elasticsearch struct {
	adaptor.BaseConfig
	AWSAccessKeyID  string `json:"aws_access_key" doc:"credentials for use with AWS Elasticsearch service"`
	AWSAccessSecret string `json:"aws_access_secret" doc:"credentials for use with AWS Elasticsearch service"`
	IDField         string `json:"id_field" doc:"the field used as document id, generated ids when empty"`
	BulkActions     int    `json:"bulk_actions" doc:"documents per _bulk request"`

	client *elastic.Client
	logger log.Logger
}

// Description for elasticsearch loader
func (e *Elasticsearch) Description() string {
	return description
}

// SampleConfig for elasticsearch loader
func (e *Elasticsearch) SampleConfig() string {
	return sampleConfig
}

func init() {
	adaptor.Add(
		"elasticsearch",
		func() adaptor.Loader {
			return &Elasticsearch{}
		},
	)
}

// urls returns one url per host of a comma separated uri.
func urls(uri *url.URL) []string {
	hostsAndPorts := strings.Split(uri.Host, ",")
	out := make([]string, len(hostsAndPorts))
	for i, hAndP := range hostsAndPorts {
		out[i] = fmt.Sprintf("%s://%s", uri.Scheme, hAndP)
	}
	return out
}

// Connect creates the client and checks the cluster version.
func (e *Elasticsearch) Connect() error {
	raw := e.URI
	if raw == "" {
		raw = DefaultURI
	}
	uri, err := url.Parse(raw)
	if err != nil || uri.Host == "" {
		return adaptor.InvalidURIError{URI: raw, Err: "expected scheme://host:port"}
	}
	timeout, err := e.ParseTimeout(DefaultTimeout)
	if err != nil {
		return err
	}
	if e.BulkActions <= 0 {
		e.BulkActions = DefaultBulkActions
	}

	hosts := urls(uri)
	esOptions := []elastic.ClientOptionFunc{
		elastic.SetURL(hosts...),
		elastic.SetSniff(false),
		elastic.SetHttpClient(&http.Client{
			Timeout:   timeout,
			Transport: transportFor(e.AWSAccessKeyID, e.AWSAccessSecret),
		}),
		elastic.SetMaxRetries(2),
	}
	if uri.User != nil {
		if pwd, ok := uri.User.Password(); ok {
			esOptions = append(esOptions, elastic.SetBasicAuth(uri.User.Username(), pwd))
		}
	}
	client, err := elastic.NewClient(esOptions...)
	if err != nil {
		return adaptor.ConnectError{Reason: err.Error()}
	}

	v, err := client.ElasticsearchVersion(hosts[0])
	if err != nil {
		return adaptor.VersionError{URI: hosts[0], Err: err.Error()}
	}
	if err := checkVersion(hosts[0], v); err != nil {
		return err
	}
	e.client = client
	e.logger = log.With("loader", "elasticsearch").With("version", v)
	return nil
}

func checkVersion(uri, v string) error {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return adaptor.VersionError{URI: uri, V: v, Err: err.Error()}
	}
	constraint, _ := version.NewConstraint(supportedVersions)
	if !constraint.Check(parsed) {
		return adaptor.VersionError{URI: uri, V: v, Err: "unsupported client"}
	}
	return nil
}

// Close stops the client.
func (e *Elasticsearch) Close() error {
	if e.client != nil {
		e.client.Stop()
		e.client = nil
	}
	return nil
}
