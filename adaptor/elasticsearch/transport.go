// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elasticsearch

import (
	"net/http"

	awsauth "github.com/smartystreets/go-aws-auth"
)

// awsTransport signs every request for the AWS Elasticsearch service.
type awsTransport struct {
	creds awsauth.Credentials
	next  http.RoundTripper
}

// transportFor returns a signing transport when both credentials are set,
// the default transport otherwise.
func transportFor(accessKeyID, secretAccessKey string) http.RoundTripper {
	if accessKeyID == "" || secretAccessKey == "" {
		return http.DefaultTransport
	}
	return &awsTransport{
		creds: awsauth.Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secretAccessKey},
		next:  http.DefaultTransport,
	}
}

func (t *awsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(awsauth.Sign4(req, t.creds))
}
