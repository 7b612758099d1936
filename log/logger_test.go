// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	"flag"
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFileLineLogging(t *testing.T) {
	var buf bytes.Buffer
	origLogger.Out = &buf
	origLogger.Formatter = &logrus.TextFormatter{
		DisableColors: true,
	}

	// The default logging level should be "info".
	Debugln("This debug-level line should not show up in the output.")
	Infof("This %s-level line should show up in the output.", "info")

	re := `^time=".*" level=info msg="This info-level line should show up in the output." \n$`
	if !regexp.MustCompile(re).Match(buf.Bytes()) {
		t.Fatalf("%q did not match expected regex %q", buf.String(), re)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.With("step", "merge").With("copy", 2).Infoln("started")

	re := `level=info msg=started copy=2 step=merge`
	if !regexp.MustCompile(re).Match(buf.Bytes()) {
		t.Errorf("%q did not match expected regex %q", buf.String(), re)
	}
}

func TestLevelFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	AddFlags(fs)
	defer func() { origLogger.Level = logrus.InfoLevel }()
	if err := fs.Parse([]string{"-log.level", "debug"}); err != nil {
		t.Fatalf("unexpected error parsing flags, %s", err)
	}
	if origLogger.Level != logrus.DebugLevel {
		t.Errorf("wrong level, expected %s, got %s", logrus.DebugLevel, origLogger.Level)
	}
	if err := fs.Parse([]string{"-log.level", "loud"}); err == nil {
		t.Errorf("expected error for unknown level, got nil")
	}
}
