// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import (
	"fmt"
	"io"
	"sync"

	"github.com/compose/rowflow/log"
)

// Emitter consumes the events of a pipeline's event channel.
// Stop blocks until every event already on the channel has been emitted.
type Emitter interface {
	Start()
	Stop()
}

// EmitFunc does something with one event.
type EmitFunc func(Event) error

// NewEmitter creates an Emitter calling emit for every event received on listen.
func NewEmitter(listen <-chan Event, emit EmitFunc) Emitter {
	return &emitter{
		listen: listen,
		emit:   emit,
		stop:   make(chan struct{}),
	}
}

type emitter struct {
	listen  <-chan Event
	emit    EmitFunc
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	started bool
}

func (e *emitter) Start() {
	if e.started {
		return
	}
	e.started = true
	e.wg.Add(1)
	go e.run()
}

func (e *emitter) Stop() {
	e.once.Do(func() { close(e.stop) })
	e.wg.Wait()
}

func (e *emitter) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			for {
				select {
				case ev := <-e.listen:
					e.send(ev)
				default:
					return
				}
			}
		case ev := <-e.listen:
			e.send(ev)
		}
	}
}

func (e *emitter) send(ev Event) {
	if ev == nil {
		return
	}
	if err := e.emit(ev); err != nil {
		log.Errorf("unable to emit event (%s), %s", ev, err)
	}
}

// LogEmitter logs every event on the base logger.
func LogEmitter() EmitFunc {
	return func(ev Event) error {
		log.Infoln(ev.String())
		return nil
	}
}

// NoopEmitter drops every event.
func NoopEmitter() EmitFunc {
	return func(Event) error {
		return nil
	}
}

// JSONEmitter writes every event to w as one line of JSON.
func JSONEmitter(w io.Writer) EmitFunc {
	var mu sync.Mutex
	return func(ev Event) error {
		b, err := ev.Emit()
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
}
