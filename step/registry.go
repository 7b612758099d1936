// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package step

import (
	"sort"
	"sync"
)

// Creator defines the init structure for a step
type Creator func() Step

var (
	mu    sync.RWMutex
	steps = map[string]Creator{}
)

// Add should be called in init func of step
func Add(name string, creator Creator) {
	mu.Lock()
	defer mu.Unlock()
	steps[name] = creator
}

// GetStep looks up a step by name and then init's it with the provided Config.
// returns ErrNotFound if the provided name was not registered.
func GetStep(name string, conf Config) (Step, error) {
	mu.RLock()
	creator, ok := steps[name]
	mu.RUnlock()
	if !ok {
		return nil, ErrNotFound{name}
	}
	s := creator()
	if err := conf.Construct(s); err != nil {
		return nil, ConfigError{Step: name, Reason: err.Error()}
	}
	return s, nil
}

// RegisteredSteps returns the sorted names of every step registered.
func RegisteredSteps() []string {
	mu.RLock()
	defer mu.RUnlock()
	all := make([]string, 0, len(steps))
	for name := range steps {
		all = append(all, name)
	}
	sort.Strings(all)
	return all
}

// Steps returns a non-initialized step of every registered type and is best
// used for doing assertions to see if the Step supports other interfaces
func Steps() map[string]Step {
	mu.RLock()
	defer mu.RUnlock()
	all := make(map[string]Step, len(steps))
	for name, c := range steps {
		all[name] = c()
	}
	return all
}
