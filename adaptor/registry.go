// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adaptor

import (
	"sort"
	"sync"

	"github.com/compose/rowflow/step"
)

// Creator defines the init structure for a loader
type Creator func() Loader

var (
	mu      sync.RWMutex
	loaders = map[string]Creator{}
)

// Add should be called in init func of loader
func Add(name string, creator Creator) {
	mu.Lock()
	defer mu.Unlock()
	loaders[name] = creator
}

// GetLoader looks up a loader by name and then init's it with the provided Config.
// returns ErrNotFound if the provided name was not registered.
func GetLoader(name string, conf step.Config) (Loader, error) {
	mu.RLock()
	creator, ok := loaders[name]
	mu.RUnlock()
	if !ok {
		return nil, ErrNotFound{name}
	}
	l := creator()
	if err := conf.Construct(l); err != nil {
		return nil, err
	}
	return l, nil
}

// RegisteredLoaders returns the sorted names of every loader registered.
func RegisteredLoaders() []string {
	mu.RLock()
	defer mu.RUnlock()
	all := make([]string, 0, len(loaders))
	for i := range loaders {
		all = append(all, i)
	}
	sort.Strings(all)
	return all
}

// Loaders returns an non-initialized loader per name and is best used for doing assertions to see if
// the Loader supports other interfaces
func Loaders() map[string]Loader {
	mu.RLock()
	defer mu.RUnlock()
	all := make(map[string]Loader, len(loaders))
	for name, c := range loaders {
		all[name] = c()
	}
	return all
}
