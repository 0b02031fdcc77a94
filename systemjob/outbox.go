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
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is an event waiting to be published
type Message struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Subject     string    `json:"subject"`
	CreatedAt   time.Time `json:"createdAt"`
	PublishedAt time.Time `json:"-"`
}

// MessageStore keeps events until the message publishing job sends them.
// Notify is called by the operations raising the events, possibly in an
// earlier process than the one publishing them.
type MessageStore interface {
	Notify(ctx context.Context, event, subject string) error
	Pending(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, id string) error
}

// Outbox is an in-memory MessageStore
type Outbox struct {
	mu       sync.Mutex
	messages []*Message
	now      func() time.Time
}

// InitOutbox creates an empty Outbox
func InitOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

// Notify queues an event for publishing
func (o *Outbox) Notify(ctx context.Context, event, subject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, &Message{
		ID:        uuid.New().String(),
		Type:      event,
		Subject:   subject,
		CreatedAt: o.now(),
	})
	return nil
}

// Pending returns up to limit unpublished messages, oldest first
func (o *Outbox) Pending(ctx context.Context, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	var res []Message
	for _, m := range o.messages {
		if len(res) >= limit {
			break
		}
		if m.PublishedAt.IsZero() {
			res = append(res, *m)
		}
	}
	return res, nil
}

// MarkPublished flags the message as published; unknown ids are ignored
func (o *Outbox) MarkPublished(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, m := range o.messages {
		if m.ID == id {
			m.PublishedAt = o.now()
			return nil
		}
	}
	return nil
}

// Len returns the number of unpublished messages
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, m := range o.messages {
		if m.PublishedAt.IsZero() {
			n++
		}
	}
	return n
}
