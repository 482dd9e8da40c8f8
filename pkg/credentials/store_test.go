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

package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption/aesgcm"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/storage"
)

type testEnv struct {
	store  *CredentialStore
	repo   *storage.CredentialRepository
	cipher *encryption.CipherService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cipher, err := aesgcm.NewCipherService("credential-test-passphrase", "master-key", discardLogger())
	require.NoError(t, err)
	repo := storage.NewCredentialRepository(filepath.Join(t.TempDir(), "credentials.db"), discardLogger())
	return &testEnv{
		store:  NewCredentialStore(repo, cipher, discardLogger()),
		repo:   repo,
		cipher: cipher,
	}
}

func (e *testEnv) save(t *testing.T, key string, mutate func(*models.Credential)) *models.Credential {
	t.Helper()
	cred := &models.Credential{
		Name:        "reporting",
		SecretValue: key,
		OwnerID:     "owner-1",
		Kind:        models.CredentialKindUser,
	}
	if mutate != nil {
		mutate(cred)
	}
	saved, err := e.store.Save(context.Background(), cred)
	require.NoError(t, err)
	return saved
}

func TestCredentialStore_SaveEncryptsAtRest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved := env.save(t, "plain-api-key", nil)
	assert.NotEmpty(t, saved.ID)
	assert.Empty(t, saved.SecretValue)
	assert.Equal(t, models.CredentialStateActive, saved.State)
	assert.False(t, saved.CreatedAt.IsZero())

	raw, err := env.repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, env.cipher.IsEncrypted(raw.SecretValue))
	assert.Equal(t, "plain-api-key", env.cipher.Decrypt(raw.SecretValue))
}

func TestCredentialStore_SaveRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.Save(ctx, &models.Credential{Name: "n", OwnerID: "o", Kind: models.CredentialKindUser})
	assert.ErrorIs(t, err, ErrCredentialInvalid)

	_, err = env.store.Save(ctx, &models.Credential{Name: "n", OwnerID: "o", SecretValue: "k", Kind: models.CredentialKindMaster})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestCredentialStore_ValidateMatchesIssuedKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.save(t, "other-key", nil)
	saved := env.save(t, "issued-key", nil)

	got, err := env.store.ValidateCredential(ctx, "issued-key")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Empty(t, got.SecretValue)
	require.NotNil(t, got.LastUsed)

	stored, err := env.repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsed)
}

func TestCredentialStore_ValidateMatchesLegacyPlaintext(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.repo.Insert(ctx, &models.Credential{
		ID:          "legacy-1",
		Name:        "legacy",
		SecretValue: "legacy-plain-key",
		OwnerID:     "owner-1",
		CreatedAt:   time.Now().UTC(),
		State:       models.CredentialStateActive,
		Kind:        models.CredentialKindAdmin,
	}))

	got, err := env.store.ValidateCredential(ctx, "legacy-plain-key")
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", got.ID)
	assert.Equal(t, models.CredentialKindAdmin, got.Kind)
}

func TestCredentialStore_ValidateRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	revoked := env.save(t, "revoked-key", nil)
	require.NoError(t, env.store.Revoke(ctx, revoked.ID))

	active := env.save(t, "active-key", nil)
	raw, err := env.repo.Get(ctx, active.ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "unknown token", token: "does-not-exist"},
		{name: "revoked credential", token: "revoked-key"},
		{name: "stored ciphertext presented as token", token: raw.SecretValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.store.ValidateCredential(ctx, tt.token)
			assert.ErrorIs(t, err, ErrCredentialInvalid)
			assert.NotErrorIs(t, err, ErrCredentialExpired)
		})
	}
}

func TestCredentialStore_ExpiredCredentialIsAutoRevoked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	saved := env.save(t, "expired-key", func(c *models.Credential) { c.ExpirationDate = &past })

	_, err := env.store.ValidateCredential(ctx, "expired-key")
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.ErrorIs(t, err, ErrCredentialInvalid)

	stored, err := env.repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStateRevoked, stored.State)

	_, err = env.store.ValidateCredential(ctx, "expired-key")
	assert.ErrorIs(t, err, ErrCredentialInvalid)
	assert.NotErrorIs(t, err, ErrCredentialExpired)
}

func TestCredentialStore_RevokeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved := env.save(t, "k", nil)
	require.NoError(t, env.store.Revoke(ctx, saved.ID))
	require.NoError(t, env.store.Revoke(ctx, saved.ID))

	got, err := env.store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStateRevoked, got.State)

	assert.True(t, storage.IsNotFoundError(env.store.Revoke(ctx, "missing")))
}

func TestCredentialStore_DeleteRemovesUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved := env.save(t, "k", nil)
	entry := &models.UsageLogEntry{CredentialID: saved.ID, OwnerID: saved.OwnerID, Resource: "/mcp", Method: "POST"}
	require.NoError(t, env.store.LogUsage(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	logs, err := env.store.GetUsageLogs(ctx, models.UsageFilter{CredentialID: saved.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NoError(t, env.store.Delete(ctx, saved.ID))
	_, err = env.store.Get(ctx, saved.ID)
	assert.True(t, storage.IsNotFoundError(err))

	logs, err = env.store.GetUsageLogs(ctx, models.UsageFilter{OwnerID: saved.OwnerID})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCredentialStore_ListRedactsSecretValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.save(t, "k1", nil)
	env.save(t, "k2", func(c *models.Credential) { c.OwnerID = "owner-2" })

	all, err := env.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, c := range all {
		assert.Empty(t, c.SecretValue)
	}

	owned, err := env.store.ListByOwner(ctx, "owner-2")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Empty(t, owned[0].SecretValue)
}

type failingRepo struct {
	Repository
}

func (failingRepo) FindActiveByKeyValue(context.Context, string) (*models.Credential, error) {
	return nil, storage.ErrDatabaseUnavailable
}

func TestCredentialStore_ValidatePropagatesStorageErrors(t *testing.T) {
	env := newTestEnv(t)
	store := NewCredentialStore(failingRepo{Repository: env.repo}, env.cipher, discardLogger())

	_, err := store.ValidateCredential(context.Background(), "token")
	assert.True(t, errors.Is(err, storage.ErrDatabaseUnavailable))
	assert.False(t, errors.Is(err, ErrCredentialInvalid))
}

// deterministicCipher maps a plaintext to the same ciphertext every time, so
// the encrypted-token lookup can hit
type deterministicCipher struct{}

func (deterministicCipher) Encrypt(plaintext string) (string, error) {
	return encryption.Marker + base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
}

func (deterministicCipher) Decrypt(ciphertext string) string {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, encryption.Marker))
	if err != nil {
		return ciphertext
	}
	return string(raw)
}

func (deterministicCipher) IsEncrypted(text string) bool {
	return strings.HasPrefix(text, encryption.Marker)
}

// lookupSpy records key lookups and scans made against the wrapped repository
type lookupSpy struct {
	Repository

	mu      sync.Mutex
	lookups []string
	scans   int
}

func (r *lookupSpy) FindActiveByKeyValue(ctx context.Context, value string) (*models.Credential, error) {
	r.mu.Lock()
	r.lookups = append(r.lookups, value)
	r.mu.Unlock()
	return r.Repository.FindActiveByKeyValue(ctx, value)
}

func (r *lookupSpy) ListActive(ctx context.Context) ([]*models.Credential, error) {
	r.mu.Lock()
	r.scans++
	r.mu.Unlock()
	return r.Repository.ListActive(ctx)
}

func newSpyStore(t *testing.T) (*CredentialStore, *lookupSpy) {
	t.Helper()
	repo := storage.NewCredentialRepository(filepath.Join(t.TempDir(), "credentials.db"), discardLogger())
	spy := &lookupSpy{Repository: repo}
	return NewCredentialStore(spy, deterministicCipher{}, discardLogger()), spy
}

func TestCredentialStore_ValidateMatchesEncryptedTokenWithoutScan(t *testing.T) {
	store, spy := newSpyStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, &models.Credential{
		Name: "reporting", SecretValue: "issued-key", OwnerID: "owner-1", Kind: models.CredentialKindUser,
	})
	require.NoError(t, err)

	got, err := store.ValidateCredential(ctx, "issued-key")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Empty(t, got.SecretValue)

	encrypted, _ := deterministicCipher{}.Encrypt("issued-key")
	assert.Equal(t, []string{"issued-key", encrypted}, spy.lookups)
	assert.Equal(t, 0, spy.scans)
}

func TestCredentialStore_ValidateStoredValueWinsOverEncryptedToken(t *testing.T) {
	store, spy := newSpyStore(t)
	ctx := context.Background()

	require.NoError(t, spy.Repository.Insert(ctx, &models.Credential{
		ID:          "legacy-1",
		Name:        "legacy",
		SecretValue: "shared-key",
		OwnerID:     "owner-1",
		CreatedAt:   time.Now().UTC(),
		State:       models.CredentialStateActive,
		Kind:        models.CredentialKindAdmin,
	}))
	_, err := store.Save(ctx, &models.Credential{
		Name: "current", SecretValue: "shared-key", OwnerID: "owner-2", Kind: models.CredentialKindUser,
	})
	require.NoError(t, err)

	got, err := store.ValidateCredential(ctx, "shared-key")
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", got.ID)
	assert.Equal(t, []string{"shared-key"}, spy.lookups)
	assert.Equal(t, 0, spy.scans)
}

func TestCredentialStore_ValidateFallsBackToScan(t *testing.T) {
	env := newTestEnv(t)
	spy := &lookupSpy{Repository: env.repo}
	store := NewCredentialStore(spy, env.cipher, discardLogger())
	ctx := context.Background()

	saved, err := store.Save(ctx, &models.Credential{
		Name: "reporting", SecretValue: "random-nonce-key", OwnerID: "owner-1", Kind: models.CredentialKindUser,
	})
	require.NoError(t, err)

	got, err := store.ValidateCredential(ctx, "random-nonce-key")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Len(t, spy.lookups, 2)
	assert.Equal(t, 1, spy.scans)
}
