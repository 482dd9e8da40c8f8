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
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/metrics"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/storage"
)

var (
	// ErrCredentialInvalid is returned when a presented token matches no active credential
	ErrCredentialInvalid = errors.New("invalid credential")

	// ErrCredentialExpired is returned when the matched credential is past its
	// expiration date. It wraps ErrCredentialInvalid.
	ErrCredentialExpired = fmt.Errorf("%w: credential expired", ErrCredentialInvalid)

	// ErrInvalidKind is returned for a kind that cannot be stored
	ErrInvalidKind = errors.New("invalid credential kind")
)

// Matching tiers, in evaluation order
const (
	tierExact     = "exact"
	tierEncrypted = "encrypted"
	tierScan      = "scan"
	tierNone      = "none"
)

// Repository is the persistence the credential store needs
type Repository interface {
	Insert(ctx context.Context, cred *models.Credential) error
	Get(ctx context.Context, id string) (*models.Credential, error)
	FindActiveByKeyValue(ctx context.Context, value string) (*models.Credential, error)
	List(ctx context.Context) ([]*models.Credential, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Credential, error)
	ListActive(ctx context.Context) ([]*models.Credential, error)
	UpdateState(ctx context.Context, id string, state models.CredentialState) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) (int64, error)
	InsertUsage(ctx context.Context, entry *models.UsageLogEntry) error
	ListUsage(ctx context.Context, filter models.UsageFilter) ([]*models.UsageLogEntry, error)
}

// CredentialStore persists API-key credentials encrypted at rest and resolves
// presented tokens against them
type CredentialStore struct {
	repo   Repository
	cipher encryption.Cipher
	logger *slog.Logger
	now    func() time.Time
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(repo Repository, cipher encryption.Cipher, logger *slog.Logger) *CredentialStore {
	return &CredentialStore{
		repo:   repo,
		cipher: cipher,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save encrypts the credential's secret value and persists it. The returned
// record has SecretValue cleared. The caller's struct is not modified.
func (s *CredentialStore) Save(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil || cred.SecretValue == "" {
		return nil, fmt.Errorf("%w: secret value is required", ErrCredentialInvalid)
	}
	if cred.Kind != models.CredentialKindAdmin && cred.Kind != models.CredentialKindUser {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, cred.Kind)
	}

	stored := *cred
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.State == "" {
		stored.State = models.CredentialStateActive
	}

	ciphertext, err := s.cipher.Encrypt(cred.SecretValue)
	if err != nil {
		s.logger.Error("Failed to encrypt credential",
			slog.String("credential_id", stored.ID),
			slog.Any("error", err))
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	stored.SecretValue = ciphertext

	if err := s.repo.Insert(ctx, &stored); err != nil {
		s.logger.Error("Failed to save credential",
			slog.String("credential_id", stored.ID),
			slog.String("owner_id", stored.OwnerID),
			slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("Credential saved",
		slog.String("credential_id", stored.ID),
		slog.String("owner_id", stored.OwnerID),
		slog.String("kind", string(stored.Kind)))

	stored.SecretValue = ""
	return &stored, nil
}

// ValidateCredential resolves a presented token to an active credential. The
// lookup tries an exact match on the stored value, then an exact match on the
// encrypted token, then decrypts every active credential and compares in
// constant time. Storage errors are returned as is.
func (s *CredentialStore) ValidateCredential(ctx context.Context, token string) (*models.Credential, error) {
	// A marked token can only be a stored ciphertext, never an issued key
	if token == "" || s.cipher.IsEncrypted(token) {
		metrics.CredentialValidationsTotal.WithLabelValues(tierNone, "invalid").Inc()
		return nil, ErrCredentialInvalid
	}

	cred, tier, err := s.resolve(ctx, token)
	if err != nil {
		metrics.CredentialValidationsTotal.WithLabelValues(tier, "error").Inc()
		return nil, err
	}
	if cred == nil {
		metrics.CredentialValidationsTotal.WithLabelValues(tierNone, "invalid").Inc()
		return nil, ErrCredentialInvalid
	}

	now := s.now()
	if cred.IsExpired(now) {
		s.logger.Warn("Credential expired, revoking",
			slog.String("credential_id", cred.ID),
			slog.String("owner_id", cred.OwnerID))
		if err := s.repo.UpdateState(ctx, cred.ID, models.CredentialStateRevoked); err != nil {
			s.logger.Error("Failed to auto-revoke expired credential",
				slog.String("credential_id", cred.ID),
				slog.Any("error", err))
		}
		metrics.CredentialValidationsTotal.WithLabelValues(tier, "expired").Inc()
		return nil, ErrCredentialExpired
	}

	if err := s.repo.TouchLastUsed(ctx, cred.ID, now); err != nil {
		s.logger.Warn("Failed to update credential last used time",
			slog.String("credential_id", cred.ID),
			slog.Any("error", err))
	} else {
		cred.LastUsed = &now
	}

	metrics.CredentialValidationsTotal.WithLabelValues(tier, "valid").Inc()
	cred.SecretValue = ""
	return cred, nil
}

func (s *CredentialStore) resolve(ctx context.Context, token string) (*models.Credential, string, error) {
	cred, err := s.repo.FindActiveByKeyValue(ctx, token)
	switch {
	case err == nil:
		return cred, tierExact, nil
	case !storage.IsNotFoundError(err):
		return nil, tierExact, err
	}

	encrypted, err := s.cipher.Encrypt(token)
	if err != nil {
		s.logger.Warn("Failed to encrypt presented token for lookup", slog.Any("error", err))
	} else {
		cred, err = s.repo.FindActiveByKeyValue(ctx, encrypted)
		switch {
		case err == nil:
			return cred, tierEncrypted, nil
		case !storage.IsNotFoundError(err):
			return nil, tierEncrypted, err
		}
	}

	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, tierScan, err
	}
	presented := []byte(token)
	for _, candidate := range active {
		if err := ctx.Err(); err != nil {
			return nil, tierScan, err
		}
		plaintext := s.cipher.Decrypt(candidate.SecretValue)
		if subtle.ConstantTimeCompare([]byte(plaintext), presented) == 1 {
			return candidate, tierScan, nil
		}
	}
	return nil, tierNone, nil
}

// Get returns a credential by id with SecretValue cleared
func (s *CredentialStore) Get(ctx context.Context, id string) (*models.Credential, error) {
	cred, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cred.SecretValue = ""
	return cred, nil
}

// List returns every credential with SecretValue cleared
func (s *CredentialStore) List(ctx context.Context) ([]*models.Credential, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return redact(creds), nil
}

// ListByOwner returns the credentials of one owner with SecretValue cleared
func (s *CredentialStore) ListByOwner(ctx context.Context, ownerID string) ([]*models.Credential, error) {
	creds, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return redact(creds), nil
}

// Revoke soft-deletes a credential. Revoking a revoked credential is a no-op.
func (s *CredentialStore) Revoke(ctx context.Context, id string) error {
	cred, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !cred.State.CanTransitionTo(models.CredentialStateRevoked) {
		return fmt.Errorf("credential %s cannot move from %s to %s", id, cred.State, models.CredentialStateRevoked)
	}
	if cred.State == models.CredentialStateRevoked {
		return nil
	}

	if err := s.repo.UpdateState(ctx, id, models.CredentialStateRevoked); err != nil {
		return err
	}
	s.logger.Info("Credential revoked",
		slog.String("credential_id", id),
		slog.String("owner_id", cred.OwnerID))
	return nil
}

// Delete removes a credential together with its usage logs
func (s *CredentialStore) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("Credential deleted",
		slog.String("credential_id", id),
		slog.Int64("usage_logs_removed", removed))
	return nil
}

// LogUsage appends a usage log entry, stamping the id and timestamp when unset
func (s *CredentialStore) LogUsage(ctx context.Context, entry *models.UsageLogEntry) error {
	if entry == nil || entry.CredentialID == "" {
		return fmt.Errorf("usage entry requires a credential id")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	return s.repo.InsertUsage(ctx, entry)
}

// GetUsageLogs returns usage entries for a credential or an owner, most recent first
func (s *CredentialStore) GetUsageLogs(ctx context.Context, filter models.UsageFilter) ([]*models.UsageLogEntry, error) {
	return s.repo.ListUsage(ctx, filter)
}

func redact(creds []*models.Credential) []*models.Credential {
	for _, c := range creds {
		c.SecretValue = ""
	}
	return creds
}
