// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline turns a Description into running step copies.
//
// A Description names the steps of a graph, how many copies of each run, and
// the hops between them:
//
//   desc := pipeline.Description{
//     Name: "orders",
//     Steps: []pipeline.StepDef{
//       {Name: "in", Type: "generator", Config: step.Config{...}},
//       {Name: "sorted", Type: "sort", Copies: 2, Config: step.Config{...}},
//       {Name: "out", Type: "bulkload", Config: step.Config{"loader": "file", ...}},
//     },
//     Hops: []pipeline.Hop{
//       {From: "in", To: "sorted", Distribution: "partition", PartitionField: "customer"},
//       {From: "sorted", To: "out"},
//     },
//   }
//   p, err := pipeline.New(desc, pipeline.WithEmitter(events.LogEmitter()))
//   if err != nil {
//     fmt.Println(err)
//     os.Exit(1)
//   }
//   result, err := p.Run(ctx)
//
// Every copy runs on its own goroutine. A failing copy stops the whole
// pipeline, Result reports the counters of every copy either way.
package pipeline
