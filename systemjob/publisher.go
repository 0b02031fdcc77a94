//
// Copyright (c) 2016-2026 Snowplow Analytics Ltd. All rights reserved.
//
// This program is licensed to you under the Apache License Version 2.0,
// and you may not use this file except in compliance with the Apache License Version 2.0.
// You may obtain a copy of the Apache License Version 2.0 at http://www.apache.org/licenses/LICENSE-2.0.
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the Apache License Version 2.0 is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the Apache License Version 2.0 for the specific language governing permissions and limitations there under.
//

package systemjob

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/errwrap"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends a message to an exchange
type Publisher interface {
	Publish(ctx context.Context, exchange string, msg Message) error
}

// amqpChannel is the part of *amqp.Channel used for publishing
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AmqpPublisher publishes messages to RabbitMQ, routed by their type
type AmqpPublisher struct {
	conn *amqp.Connection
	ch   amqpChannel
}

// InitAmqpPublisher connects to the broker at url
func InitAmqpPublisher(url string) (*AmqpPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't connect to RabbitMQ: {{err}}", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errwrap.Wrapf("Couldn't open a RabbitMQ channel: {{err}}", err)
	}
	return &AmqpPublisher{conn: conn, ch: ch}, nil
}

// Publish sends msg as persistent JSON
func (p *AmqpPublisher) Publish(ctx context.Context, exchange string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, exchange, msg.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
}

// Close closes the channel and the connection
func (p *AmqpPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
