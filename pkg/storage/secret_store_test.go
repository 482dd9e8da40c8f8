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
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSecretRepository(t *testing.T) *SecretRepository {
	t.Helper()
	return NewSecretRepository(filepath.Join(t.TempDir(), "secrets.db"), testLogger())
}

func TestSecretRepository_SchemaInitialization(t *testing.T) {
	repo := newTestSecretRepository(t)
	ctx := context.Background()

	assert.NilError(t, repo.Init(ctx))
	assert.Assert(t, repo.db.initialized.Load())

	db, err := repo.db.open(ctx)
	assert.NilError(t, err)
	defer db.Close()

	var version int
	assert.NilError(t, db.Get(&version, "PRAGMA user_version"))
	assert.Equal(t, version, schemaVersion)

	var count int
	assert.NilError(t, db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='secrets'"))
	assert.Equal(t, count, 1)
}

func TestSecretRepository_ConcurrentInit(t *testing.T) {
	repo := newTestSecretRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.List(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NilError(t, err)
	}
	assert.Assert(t, repo.db.initialized.Load())
}

func TestSecretRepository_InvalidPath(t *testing.T) {
	repo := NewSecretRepository("/non/existent/path/secrets.db", testLogger())

	_, err := repo.List(context.Background())
	assert.Assert(t, err != nil)
	assert.Assert(t, IsDatabaseUnavailableError(err))
	assert.Assert(t, !repo.db.initialized.Load())
}

func TestSecretRepository_UpsertPreservesCreatedOn(t *testing.T) {
	repo := newTestSecretRepository(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	desc := "primary"
	assert.NilError(t, repo.Upsert(ctx, &models.Secret{
		Name:        "Sales",
		Value:       "ENC:first",
		Kind:        models.DefaultSecretKind,
		Description: &desc,
		CreatedOn:   created,
	}))

	assert.NilError(t, repo.Upsert(ctx, &models.Secret{
		Name:      "sales",
		Value:     "ENC:second",
		Kind:      "Postgres",
		CreatedOn: time.Now().UTC(),
	}))

	got, err := repo.Get(ctx, "SALES")
	assert.NilError(t, err)
	assert.Equal(t, got.Name, "Sales")
	assert.Equal(t, got.Value, "ENC:second")
	assert.Equal(t, got.Kind, "Postgres")
	assert.Assert(t, got.Description == nil)
	assert.Assert(t, got.CreatedOn.Equal(created))

	all, err := repo.List(ctx)
	assert.NilError(t, err)
	assert.Equal(t, len(all), 1)
}

func TestSecretRepository_GetNotFound(t *testing.T) {
	repo := newTestSecretRepository(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.Assert(t, IsNotFoundError(err))
}

func TestSecretRepository_Delete(t *testing.T) {
	repo := newTestSecretRepository(t)
	ctx := context.Background()

	assert.NilError(t, repo.Upsert(ctx, &models.Secret{Name: "a", Value: "v", Kind: "k", CreatedOn: time.Now().UTC()}))
	assert.NilError(t, repo.Delete(ctx, "A"))

	err := repo.Delete(ctx, "a")
	assert.Assert(t, IsNotFoundError(err))
}

func TestSecretRepository_TouchLastUsed(t *testing.T) {
	repo := newTestSecretRepository(t)
	ctx := context.Background()

	assert.NilError(t, repo.Upsert(ctx, &models.Secret{Name: "a", Value: "v", Kind: "k", CreatedOn: time.Now().UTC()}))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.NilError(t, repo.TouchLastUsed(ctx, "a", at))

	got, err := repo.Get(ctx, "a")
	assert.NilError(t, err)
	assert.Assert(t, got.LastUsed != nil)
	assert.Assert(t, got.LastUsed.Equal(at))

	err = repo.TouchLastUsed(ctx, "missing", at)
	assert.Assert(t, IsNotFoundError(err))
}
