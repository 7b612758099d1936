// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rabbitmq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/compose/rowflow/adaptor"
	"github.com/compose/rowflow/log"
	"github.com/compose/rowflow/row"
)

// publisher is the part of an amqp.Channel a load needs.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Load publishes the rows on a channel of its own.
func (m *RabbitMQ) Load(ctx context.Context, req adaptor.Request) ([]string, error) {
	ch, err := m.conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	return nil, m.publish(ctx, ch, req)
}

func (m *RabbitMQ) publish(ctx context.Context, p publisher, req adaptor.Request) error {
	logger := log.With("exchange", req.Target)
	rr := adaptor.NewRowReader(req.Format, req.Meta, req.Reader)
	meta := rr.Meta()
	key := -1
	if m.KeyInField {
		if key = meta.IndexOfValue(m.RoutingKey); key < 0 {
			return fmt.Errorf("routing key field %s not found", m.RoutingKey)
		}
	}

	var (
		buf   bytes.Buffer
		enc   = adaptor.NewEncoder(adaptor.JSON, meta, &buf)
		count int
	)
	for n := 1; ; n++ {
		r, err := rr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "row %d", n)
		}
		routingKey, err := m.routingKey(meta, key, r)
		if err != nil {
			return errors.Wrapf(err, "row %d", n)
		}
		buf.Reset()
		if err := enc.Encode(r); err != nil {
			return errors.Wrapf(err, "row %d", n)
		}
		msg := amqp.Publishing{
			DeliveryMode: m.DeliveryMode,
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Body:         append([]byte(nil), bytes.TrimRight(buf.Bytes(), "\n")...),
		}
		if err := p.Publish(req.Target, routingKey, false, false, msg); err != nil {
			logger.Errorf("publish error, %s", err)
			return err
		}
		count++
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	logger.With("messages", count).Debugln("publish complete")
	return nil
}

func (m *RabbitMQ) routingKey(meta *row.Meta, key int, r row.Row) (string, error) {
	if key < 0 {
		return m.RoutingKey, nil
	}
	v := meta.Value(key)
	if v.IsNull(r[key]) {
		return "", fmt.Errorf("routing key %s is null", v.Name)
	}
	return v.GetString(r[key])
}
