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
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/errwrap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxSchema creates the table backing PostgresOutbox
const OutboxSchema = `
CREATE TABLE IF NOT EXISTS outbox_messages (
	id           UUID PRIMARY KEY,
	type         TEXT NOT NULL,
	subject      TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_messages_pending_idx
	ON outbox_messages (created_at) WHERE published_at IS NULL;
`

// PostgresOutbox is a MessageStore kept in the outbox_messages table, so
// events queued by one command are published by a later system job run
type PostgresOutbox struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// InitPostgresOutbox creates a PostgresOutbox on the pool
func InitPostgresOutbox(pool *pgxpool.Pool) *PostgresOutbox {
	return &PostgresOutbox{pool: pool, now: time.Now}
}

// EnsureSchema creates the outbox table when missing
func (o *PostgresOutbox) EnsureSchema(ctx context.Context) error {
	if _, err := o.pool.Exec(ctx, OutboxSchema); err != nil {
		return errwrap.Wrapf("Couldn't create outbox schema: {{err}}", err)
	}
	return nil
}

// Notify queues an event for publishing
func (o *PostgresOutbox) Notify(ctx context.Context, event, subject string) error {
	_, err := o.pool.Exec(ctx,
		`INSERT INTO outbox_messages (id, type, subject, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), event, subject, o.now().UTC())
	if err != nil {
		return errwrap.Wrapf("Couldn't queue message: {{err}}", err)
	}
	return nil
}

// Pending returns up to limit unpublished messages, oldest first
func (o *PostgresOutbox) Pending(ctx context.Context, limit int) ([]Message, error) {
	rows, err := o.pool.Query(ctx, `
		SELECT id, type, subject, created_at FROM outbox_messages
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't read pending messages: {{err}}", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var msg Message
		err := row.Scan(&msg.ID, &msg.Type, &msg.Subject, &msg.CreatedAt)
		return msg, err
	})
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't scan pending messages: {{err}}", err)
	}
	return messages, nil
}

// MarkPublished flags the message as published; unknown ids are ignored
func (o *PostgresOutbox) MarkPublished(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	_, err := o.pool.Exec(ctx,
		`UPDATE outbox_messages SET published_at = $2 WHERE id = $1 AND published_at IS NULL`,
		id, o.now().UTC())
	if err != nil {
		return errwrap.Wrapf("Couldn't mark message '"+id+"' as published: {{err}}", err)
	}
	return nil
}
