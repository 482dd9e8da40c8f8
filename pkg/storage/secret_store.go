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
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

//go:embed secrets-db.sql
var secretsSchemaSQL string

const secretColumns = `name, value, kind, description, last_used, created_on`

// SecretRepository persists secrets in SQLite. Values are written exactly as
// given; encryption happens in the service layer.
type SecretRepository struct {
	db     *sqliteDB
	logger *slog.Logger
}

// NewSecretRepository creates a repository backed by the database file at dbPath.
// The schema is created on first use.
func NewSecretRepository(dbPath string, logger *slog.Logger) *SecretRepository {
	return &SecretRepository{
		db:     newSQLiteDB(dbPath, secretsSchemaSQL, logger),
		logger: logger,
	}
}

// Init creates the schema if needed
func (r *SecretRepository) Init(ctx context.Context) error {
	return r.db.ensureSchema(ctx)
}

// List returns every secret ordered by name
func (r *SecretRepository) List(ctx context.Context) ([]*models.Secret, error) {
	db, err := r.db.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	secrets := []*models.Secret{}
	query := `SELECT ` + secretColumns + ` FROM secrets ORDER BY name COLLATE NOCASE`
	if err := db.SelectContext(ctx, &secrets, query); err != nil {
		return nil, fmt.Errorf("failed to query secrets: %w", err)
	}
	return secrets, nil
}

// Get returns the secret with the given name, compared case-insensitively
func (r *SecretRepository) Get(ctx context.Context, name string) (*models.Secret, error) {
	db, err := r.db.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var secret models.Secret
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE name = ?`
	if err := db.GetContext(ctx, &secret, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: secret=%s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to query secret: %w", err)
	}
	return &secret, nil
}

// Upsert inserts the secret or overwrites value, kind and description of an
// existing one. created_on and last_used of an existing row are kept.
func (r *SecretRepository) Upsert(ctx context.Context, secret *models.Secret) error {
	db, err := r.db.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	query := `
		INSERT INTO secrets (name, value, kind, description, last_used, created_on)
		VALUES (:name, :value, :kind, :description, :last_used, :created_on)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			kind = excluded.kind,
			description = excluded.description`

	if _, err := db.NamedExecContext(ctx, query, secret); err != nil {
		return fmt.Errorf("failed to upsert secret: %w", err)
	}

	r.logger.Debug("Secret upserted", slog.String("secret_name", secret.Name))
	return nil
}

// Delete removes the secret with the given name
func (r *SecretRepository) Delete(ctx context.Context, name string) error {
	db, err := r.db.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `DELETE FROM secrets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: secret=%s", ErrNotFound, name)
	}
	return nil
}

// TouchLastUsed sets last_used of the named secret
func (r *SecretRepository) TouchLastUsed(ctx context.Context, name string, at time.Time) error {
	db, err := r.db.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `UPDATE secrets SET last_used = ? WHERE name = ?`, at, name)
	if err != nil {
		return fmt.Errorf("failed to update last_used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: secret=%s", ErrNotFound, name)
	}
	return nil
}
