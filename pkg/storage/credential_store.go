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

//go:embed credentials-db.sql
var credentialsSchemaSQL string

const (
	credentialColumns = `id, name, key_value, owner_id, created_at, expiration_date, last_used,
		state, kind, description, allowed_resource_names`

	usageColumns = `id, credential_id, owner_id, timestamp, resource, method, ip_address, user_agent`

	// DefaultUsageLimit applies when a usage query does not set a limit
	DefaultUsageLimit = 100

	// MaxUsageLimit caps a single usage query
	MaxUsageLimit = 1000
)

// CredentialRepository persists credentials and their usage logs in SQLite
type CredentialRepository struct {
	db     *sqliteDB
	logger *slog.Logger
}

// NewCredentialRepository creates a repository backed by the database file at dbPath.
// The schema is created on first use.
func NewCredentialRepository(dbPath string, logger *slog.Logger) *CredentialRepository {
	return &CredentialRepository{
		db:     newSQLiteDB(dbPath, credentialsSchemaSQL, logger),
		logger: logger,
	}
}

// Init creates the schema if needed
func (r *CredentialRepository) Init(ctx context.Context) error {
	return r.db.ensureSchema(ctx)
}

// Insert persists a new credential
func (r *CredentialRepository) Insert(ctx context.Context, cred *models.Credential) error {
	if cred.State == models.CredentialStateDeleted {
		return fmt.Errorf("cannot insert credential %s in state %s", cred.ID, cred.State)
	}

	db, err := r.db.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES (:id, :name, :key_value, :owner_id, :created_at, :expiration_date, :last_used,
			:state, :kind, :description, :allowed_resource_names)`

	if _, err := db.NamedExecContext(ctx, query, cred); err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: credential id=%s", ErrConflict, cred.ID)
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	r.logger.Debug("Credential inserted",
		slog.String("credential_id", cred.ID),
		slog.String("owner_id", cred.OwnerID))
	return nil
}

// Get returns the credential with the given id
func (r *CredentialRepository) Get(ctx context.Context, id string) (*models.Credential, error) {
	return r.getOne(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)
}

// FindActiveByKeyValue returns the active credential whose stored key value
// equals value exactly
func (r *CredentialRepository) FindActiveByKeyValue(ctx context.Context, value string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE key_value = ? AND state = ? LIMIT 1`
	return r.getOne(ctx, query, value, models.CredentialStateActive)
}

func (r *CredentialRepository) getOne(ctx context.Context, query string, args ...any) (*models.Credential, error) {
	db, err := r.db.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var cred models.Credential
	if err := db.GetContext(ctx, &cred, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return &cred, nil
}

// List returns every credential, newest first
func (r *CredentialRepository) List(ctx context.Context) ([]*models.Credential, error) {
	return r.list(ctx, `SELECT `+credentialColumns+` FROM credentials ORDER BY created_at DESC`)
}

// ListByOwner returns the credentials of one owner, newest first
func (r *CredentialRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Credential, error) {
	return r.list(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

// ListActive returns every credential in the active state
func (r *CredentialRepository) ListActive(ctx context.Context) ([]*models.Credential, error) {
	return r.list(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE state = ?`, models.CredentialStateActive)
}

func (r *CredentialRepository) list(ctx context.Context, query string, args ...any) ([]*models.Credential, error) {
	db, err := r.db.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	creds := []*models.Credential{}
	if err := db.SelectContext(ctx, &creds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	return creds, nil
}

// UpdateState moves a stored credential to state. Use Delete for the deleted state.
func (r *CredentialRepository) UpdateState(ctx context.Context, id string, state models.CredentialState) error {
	if state == models.CredentialStateDeleted {
		return fmt.Errorf("use Delete to remove credential %s", id)
	}

	db, err := r.db.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `UPDATE credentials SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("failed to update credential state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: credential id=%s", ErrNotFound, id)
	}
	return nil
}

// TouchLastUsed sets last_used of a credential
func (r *CredentialRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	db, err := r.db.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `UPDATE credentials SET last_used = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("failed to update last_used: %w", err)
	}
	return nil
}

// Delete removes a credential and its usage logs in one transaction. It
// returns the number of usage log rows removed.
func (r *CredentialRepository) Delete(ctx context.Context, id string) (int64, error) {
	db, err := r.db.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	logsResult, err := tx.ExecContext(ctx, `DELETE FROM credential_usage_logs WHERE credential_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete usage logs: %w", err)
	}
	removedLogs, err := logsResult.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: credential id=%s", ErrNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return removedLogs, nil
}

// InsertUsage appends a usage log entry
func (r *CredentialRepository) InsertUsage(ctx context.Context, entry *models.UsageLogEntry) error {
	db, err := r.db.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	query := `
		INSERT INTO credential_usage_logs (` + usageColumns + `)
		VALUES (:id, :credential_id, :owner_id, :timestamp, :resource, :method, :ip_address, :user_agent)`

	if _, err := db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// ListUsage returns usage log entries matching filter, most recent first
func (r *CredentialRepository) ListUsage(ctx context.Context, filter models.UsageFilter) ([]*models.UsageLogEntry, error) {
	var where string
	var arg string
	switch {
	case filter.CredentialID != "":
		where, arg = "credential_id = ?", filter.CredentialID
	case filter.OwnerID != "":
		where, arg = "owner_id = ?", filter.OwnerID
	default:
		return nil, fmt.Errorf("usage query requires a credential id or an owner id")
	}

	db, err := r.db.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	entries := []*models.UsageLogEntry{}
	query := `SELECT ` + usageColumns + ` FROM credential_usage_logs WHERE ` + where +
		` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	if err := db.SelectContext(ctx, &entries, query, arg, clampUsageLimit(filter.Limit)); err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	return entries, nil
}

func clampUsageLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultUsageLimit
	case limit > MaxUsageLimit:
		return MaxUsageLimit
	default:
		return limit
	}
}
