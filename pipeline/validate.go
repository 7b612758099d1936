// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"

	"github.com/compose/rowflow/step"
)

// Factory creates the step for one copy of def.
type Factory func(def StepDef, copy int) (step.Step, error)

// RegistryFactory creates steps from the step registry.
func RegistryFactory(def StepDef, copy int) (step.Step, error) {
	return step.GetStep(def.Type, def.Config)
}

// Validate checks d against the steps of the registry.
func (d Description) Validate() error {
	return d.validate(RegistryFactory)
}

func (d Description) validate(factory Factory) error {
	var problems []string
	problem := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(d.Steps) == 0 {
		problem("no steps")
	}
	if d.RowSetSize < 0 {
		problem("row_set_size must not be negative")
	}

	channels := make(map[string]step.Channels, len(d.Steps))
	for _, def := range d.Steps {
		if def.Name == "" {
			problem("step of type '%s' without a name", def.Type)
			continue
		}
		if _, ok := channels[def.Name]; ok {
			problem("step name '%s' used more than once", def.Name)
			continue
		}
		if def.Copies < 0 {
			problem("step '%s' has a negative number of copies", def.Name)
		}
		if _, err := def.timeout(); err != nil {
			problem("step '%s' has an invalid timeout, %s", def.Name, err)
		}
		s, err := factory(def, 0)
		if err != nil {
			problem("step '%s', %s", def.Name, err)
			channels[def.Name] = step.DefaultChannels
			continue
		}
		channels[def.Name] = step.ChannelsOf(s)
	}

	inputs := make(map[string]int)
	outputs := make(map[string]int)
	errorHops := make(map[string]int)
	seen := make(map[[2]string]bool)
	edges := make(map[string][]string)
	for _, h := range d.Hops {
		if h.Disabled {
			continue
		}
		_, fromOK := channels[h.From]
		_, toOK := channels[h.To]
		if !fromOK {
			problem("hop %s starts at unknown step '%s'", h, h.From)
		}
		if !toOK {
			problem("hop %s ends at unknown step '%s'", h, h.To)
		}
		if !fromOK || !toOK {
			continue
		}
		if seen[[2]string{h.From, h.To}] {
			problem("hop %s defined more than once", h)
		}
		seen[[2]string{h.From, h.To}] = true

		dist, err := step.ParseDistribution(h.Distribution)
		if err != nil {
			problem("hop %s, %s", h, err)
		}
		if dist == step.Partitioned && h.PartitionField == "" {
			problem("partition hop %s needs a partition_field", h)
		}

		inputs[h.To]++
		edges[h.From] = append(edges[h.From], h.To)
		if h.Error {
			errorHops[h.From]++
			if !channels[h.From].ErrorHandling {
				problem("step '%s' does not support error handling, error hop %s is not allowed", h.From, h)
			}
		} else {
			outputs[h.From]++
		}
	}

	for _, def := range d.Steps {
		c, ok := channels[def.Name]
		if !ok || def.Name == "" {
			continue
		}
		if n := inputs[def.Name]; n < c.MinInputs {
			problem("step '%s' needs at least %d input hops, has %d", def.Name, c.MinInputs, n)
		} else if c.MaxInputs >= 0 && n > c.MaxInputs {
			problem("step '%s' accepts at most %d input hops, has %d", def.Name, c.MaxInputs, n)
		}
		if !c.Outputs && outputs[def.Name] > 0 {
			problem("step '%s' does not accept output hops", def.Name)
		}
		if errorHops[def.Name] > 1 {
			problem("step '%s' has %d error hops, at most one is allowed", def.Name, errorHops[def.Name])
		}
	}

	if cycle := findCycle(edges); cycle != "" {
		problem("hops form a cycle through '%s'", cycle)
	}

	if len(problems) > 0 {
		return ValidationError{Problems: problems}
	}
	return nil
}

// findCycle returns a step on a cycle of edges, "" when there is none.
func findCycle(edges map[string][]string) string {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int)
	var visit func(n string) string
	visit = func(n string) string {
		state[n] = visiting
		for _, next := range edges[n] {
			switch state[next] {
			case visiting:
				return next
			case unvisited:
				if c := visit(next); c != "" {
					return c
				}
			}
		}
		state[n] = visited
		return ""
	}
	for n := range edges {
		if state[n] == unvisited {
			if c := visit(n); c != "" {
				return c
			}
		}
	}
	return ""
}
