/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schemaVersion = 1

// sqliteDB opens a short-lived connection per operation and creates its
// schema lazily, exactly once per process.
type sqliteDB struct {
	path   string
	schema string
	logger *slog.Logger

	initMu      sync.Mutex
	initialized atomic.Bool
}

func newSQLiteDB(path, schema string, logger *slog.Logger) *sqliteDB {
	return &sqliteDB{
		path:   path,
		schema: schema,
		logger: logger,
	}
}

// connect returns an initialized connection. Callers must close it.
func (d *sqliteDB) connect(ctx context.Context) (*sqlx.DB, error) {
	if err := d.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return d.open(ctx)
}

func (d *sqliteDB) open(ctx context.Context) (*sqlx.DB, error) {
	// Build connection string with SQLite pragmas for concurrent short-lived access
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=2000&_foreign_keys=ON", d.path)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrDatabaseUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrDatabaseUnavailable, d.path, err)
	}
	return db, nil
}

// ensureSchema is guarded by a mutex with a double-checked flag so concurrent
// first callers create the schema once.
func (d *sqliteDB) ensureSchema(ctx context.Context) error {
	if d.initialized.Load() {
		return nil
	}

	d.initMu.Lock()
	defer d.initMu.Unlock()

	if d.initialized.Load() {
		return nil
	}

	db, err := d.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var version int
	if err := db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("failed to query schema version: %w", err)
	}

	if version == 0 {
		d.logger.Info("Initializing database schema",
			slog.String("database_path", d.path),
			slog.Int("version", schemaVersion))

		if _, err := db.ExecContext(ctx, d.schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	} else {
		d.logger.Debug("Database schema already exists",
			slog.String("database_path", d.path),
			slog.Int("version", version))
	}

	d.initialized.Store(true)
	return nil
}
