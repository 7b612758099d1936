// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/compose/rowflow/pipeline"
)

var envRe = regexp.MustCompile(`\$\{([a-zA-Z0-9_]+)\}`)

// pipelineFile is the YAML document describing one pipeline.
type pipelineFile struct {
	pipeline.Description

	// Engine is a version constraint the running binary has to satisfy,
	// ie ">= 1.0, < 2.0".
	Engine string `json:"engine"`
	// MetricsInterval emits step metrics periodically, ie 10s.
	MetricsInterval string `json:"metrics_interval"`
}

func (f *pipelineFile) metricsInterval() (time.Duration, error) {
	if f.MetricsInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(f.MetricsInterval)
}

// setConfigEnvironment replaces environment variables marked in the form ${FOO} with the
// value stored in the environment variable `FOO`
func setConfigEnvironment(ba []byte) []byte {
	matches := envRe.FindAllSubmatch(ba, -1)
	if matches == nil {
		return ba
	}

	for _, m := range matches {
		v := os.Getenv(string(m[1]))
		ba = bytes.Replace(ba, m[0], []byte(v), -1)
	}

	return ba
}

// stringKeys turns the maps YAML decodes into maps with string keys, the
// step configurations are constructed through JSON.
func stringKeys(in interface{}) (interface{}, error) {
	switch t := in.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			c, err := stringKeys(v)
			if err != nil {
				return nil, err
			}
			out[key] = c
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			c, err := stringKeys(v)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return in, nil
}

func parsePipeline(ba []byte) (*pipelineFile, error) {
	var raw interface{}
	if err := yaml.Unmarshal(setConfigEnvironment(ba), &raw); err != nil {
		return nil, err
	}
	doc, err := stringKeys(raw)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	f := &pipelineFile{}
	if err := json.Unmarshal(b, f); err != nil {
		return nil, err
	}
	return f, checkEngine(f.Engine, version)
}

// loadPipeline reads and decodes a pipeline file.
func loadPipeline(filename string) (*pipelineFile, error) {
	ba, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	f, err := parsePipeline(ba)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", filename)
	}
	return f, nil
}

// checkEngine reports whether the running version v satisfies constraint.
func checkEngine(constraint, v string) error {
	if constraint == "" {
		return nil
	}
	c, err := goversion.NewConstraint(constraint)
	if err != nil {
		return errors.Wrap(err, "engine")
	}
	running, err := goversion.NewVersion(v)
	if err != nil {
		return err
	}
	if !c.Check(running) {
		return fmt.Errorf("pipeline needs engine %s, running %s", constraint, v)
	}
	return nil
}
