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

package partition

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/errwrap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Schema creates the tables backing PostgresRepository. Uniqueness of names
// regardless of case is enforced by the index on lower(name).
const Schema = `
CREATE TABLE IF NOT EXISTS partition_key_groups (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS partition_key_groups_lower_name_idx
	ON partition_key_groups (lower(name));

CREATE TABLE IF NOT EXISTS expected_partition_values (
	id                     BIGSERIAL PRIMARY KEY,
	partition_key_group_id BIGINT NOT NULL REFERENCES partition_key_groups (id) ON DELETE CASCADE,
	position               INT NOT NULL,
	value                  TEXT NOT NULL,
	UNIQUE (partition_key_group_id, value)
);

CREATE TABLE IF NOT EXISTS business_object_formats (
	id                     BIGSERIAL PRIMARY KEY,
	name                   TEXT NOT NULL UNIQUE,
	partition_key_group_id BIGINT REFERENCES partition_key_groups (id)
);
`

// PostgresRepository is a Repository stored in PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPool connects to the database at dbURL and checks it is reachable
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't parse database url: {{err}}", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't create database pool: {{err}}", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errwrap.Wrapf("Couldn't reach database: {{err}}", err)
	}
	return pool, nil
}

// InitPostgresRepository creates a PostgresRepository on the pool
func InitPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the tables when they don't exist
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return errwrap.Wrapf("Couldn't create partition key group schema: {{err}}", err)
	}
	return nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*PartitionKeyGroup, error) {
	var id int64
	group := &PartitionKeyGroup{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM partition_key_groups WHERE lower(name) = lower($1)`,
		name,
	).Scan(&id, &group.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't get partition key group: {{err}}", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT value FROM expected_partition_values WHERE partition_key_group_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't get expected partition values: {{err}}", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't scan expected partition values: {{err}}", err)
	}
	if len(values) > 0 {
		group.ExpectedPartitionValues = values
	}
	return group, nil
}

func (r *PostgresRepository) Save(ctx context.Context, group *PartitionKeyGroup) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO partition_key_groups (name) VALUES ($1) RETURNING id`,
			group.Name,
		).Scan(&id); err != nil {
			return err
		}
		return insertValues(ctx, tx, id, 0, group.ExpectedPartitionValues)
	})
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return errwrap.Wrapf("Couldn't save partition key group: {{err}}", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, group *PartitionKeyGroup) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM partition_key_groups WHERE lower(name) = lower($1)`, group.Name)
	if isForeignKeyViolation(err) {
		return ErrReferencedByFormat
	}
	if err != nil {
		return errwrap.Wrapf("Couldn't delete partition key group: {{err}}", err)
	}
	return nil
}

func (r *PostgresRepository) ListKeys(ctx context.Context) ([]PartitionKeyGroupKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM partition_key_groups ORDER BY name`)
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't list partition key groups: {{err}}", err)
	}
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PartitionKeyGroupKey, error) {
		var key PartitionKeyGroupKey
		err := row.Scan(&key.Name)
		return key, err
	})
	if err != nil {
		return nil, errwrap.Wrapf("Couldn't scan partition key groups: {{err}}", err)
	}
	return keys, nil
}

func (r *PostgresRepository) IsReferencedByFormat(ctx context.Context, name string) (bool, error) {
	var referenced bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM business_object_formats f
			JOIN partition_key_groups g ON g.id = f.partition_key_group_id
			WHERE lower(g.name) = lower($1)
		)`, name).Scan(&referenced)
	if err != nil {
		return false, errwrap.Wrapf("Couldn't check business object format references: {{err}}", err)
	}
	return referenced, nil
}

func (r *PostgresRepository) AddExpectedPartitionValues(ctx context.Context, name string, values []string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		var position int
		if err := tx.QueryRow(ctx,
			`SELECT id FROM partition_key_groups WHERE lower(name) = lower($1) FOR UPDATE`,
			name,
		).Scan(&id); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), 0) FROM expected_partition_values WHERE partition_key_group_id = $1`,
			id,
		).Scan(&position); err != nil {
			return err
		}
		return insertValues(ctx, tx, id, position, values)
	})
	if isUniqueViolation(err) {
		return ErrDuplicateValue
	}
	if err != nil {
		return errwrap.Wrapf("Couldn't add expected partition values: {{err}}", err)
	}
	return nil
}

// AddFormatReference records that the business object format references
// the group
func (r *PostgresRepository) AddFormatReference(ctx context.Context, format, groupName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_object_formats (name, partition_key_group_id)
		SELECT $1, id FROM partition_key_groups WHERE lower(name) = lower($2)
		ON CONFLICT (name) DO UPDATE SET partition_key_group_id = EXCLUDED.partition_key_group_id`,
		format, groupName)
	if err != nil {
		return errwrap.Wrapf("Couldn't add business object format reference: {{err}}", err)
	}
	return nil
}

func insertValues(ctx context.Context, tx pgx.Tx, groupID int64, position int, values []string) error {
	for i, value := range values {
		if _, err := tx.Exec(ctx,
			`INSERT INTO expected_partition_values (partition_key_group_id, position, value) VALUES ($1, $2, $3)`,
			groupID, position+i+1, value,
		); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
