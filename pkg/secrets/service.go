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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/metrics"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

const (
	// MaxSecretSize is the maximum allowed size for a secret value (10KB)
	MaxSecretSize = 10 * 1024
)

// ErrInvalidSecret is returned when a secret fails validation
var ErrInvalidSecret = errors.New("invalid secret")

// Repository is the persistence the secret store needs
type Repository interface {
	List(ctx context.Context) ([]*models.Secret, error)
	Get(ctx context.Context, name string) (*models.Secret, error)
	Upsert(ctx context.Context, secret *models.Secret) error
	Delete(ctx context.Context, name string) error
	TouchLastUsed(ctx context.Context, name string, at time.Time) error
}

// SecretStore encrypts secrets on write and decrypts them on read
type SecretStore struct {
	repo   Repository
	cipher encryption.Cipher
	logger *slog.Logger
	now    func() time.Time
}

// NewSecretStore creates a new secret store
func NewSecretStore(repo Repository, cipher encryption.Cipher, logger *slog.Logger) *SecretStore {
	return &SecretStore{
		repo:   repo,
		cipher: cipher,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetAll returns every secret with its value decrypted
func (s *SecretStore) GetAll(ctx context.Context) ([]*models.Secret, error) {
	secrets, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list secrets", slog.Any("error", err))
		return nil, fmt.Errorf("storage failed: %w", err)
	}

	for _, secret := range secrets {
		secret.Value = s.cipher.Decrypt(secret.Value)
	}
	return secrets, nil
}

// GetAllRaw returns every secret with its value as stored
func (s *SecretStore) GetAllRaw(ctx context.Context) ([]*models.Secret, error) {
	secrets, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list raw secrets", slog.Any("error", err))
		return nil, fmt.Errorf("storage failed: %w", err)
	}
	return secrets, nil
}

// GetByName returns a decrypted secret. Names are case-insensitive.
func (s *SecretStore) GetByName(ctx context.Context, name string) (*models.Secret, error) {
	secret, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	secret.Value = s.cipher.Decrypt(secret.Value)
	return secret, nil
}

// Save encrypts the value and upserts the secret. The caller's struct is not modified.
func (s *SecretStore) Save(ctx context.Context, secret *models.Secret) error {
	if err := validate(secret); err != nil {
		return err
	}
	if len(secret.Value) > MaxSecretSize {
		return fmt.Errorf("%w: value exceeds %d bytes", ErrInvalidSecret, MaxSecretSize)
	}

	ciphertext, err := s.cipher.Encrypt(secret.Value)
	if err != nil {
		s.logger.Error("Failed to encrypt secret",
			slog.String("secret_name", secret.Name),
			slog.Any("error", err),
		)
		return fmt.Errorf("encryption failed: %w", err)
	}

	stored := s.prepare(secret)
	stored.Value = ciphertext
	if err := s.repo.Upsert(ctx, stored); err != nil {
		s.logger.Error("Failed to save secret",
			slog.String("secret_name", secret.Name),
			slog.Any("error", err),
		)
		recordOperation("save", err)
		return fmt.Errorf("storage failed: %w", err)
	}

	recordOperation("save", nil)
	s.logger.Info("Secret saved", slog.String("secret_name", secret.Name))
	return nil
}

// SaveRawDirect upserts the secret without encrypting. Only rotation and
// migration call it, with values they already encrypted and verified.
func (s *SecretStore) SaveRawDirect(ctx context.Context, secret *models.Secret) error {
	if err := validate(secret); err != nil {
		return err
	}

	err := s.repo.Upsert(ctx, s.prepare(secret))
	recordOperation("save_raw", err)
	if err != nil {
		s.logger.Error("Failed to save raw secret",
			slog.String("secret_name", secret.Name),
			slog.Any("error", err),
		)
		return fmt.Errorf("storage failed: %w", err)
	}
	return nil
}

// Delete removes a secret
func (s *SecretStore) Delete(ctx context.Context, name string) error {
	err := s.repo.Delete(ctx, name)
	recordOperation("delete", err)
	if err != nil {
		return err
	}
	s.logger.Info("Secret deleted", slog.String("secret_name", name))
	return nil
}

// TouchLastUsed records that a secret was used. Failures are logged and never returned.
func (s *SecretStore) TouchLastUsed(ctx context.Context, name string) {
	err := s.repo.TouchLastUsed(ctx, name, s.now())
	recordOperation("touch", err)
	if err != nil {
		s.logger.Warn("Failed to update secret last used time",
			slog.String("secret_name", name),
			slog.Any("error", err),
		)
	}
}

// prepare copies secret and fills the insert defaults. The repository keeps an
// existing row's created_on on update.
func (s *SecretStore) prepare(secret *models.Secret) *models.Secret {
	stored := *secret
	stored.Name = strings.TrimSpace(stored.Name)
	if stored.Kind == "" {
		stored.Kind = models.DefaultSecretKind
	}
	stored.CreatedOn = s.now()
	return &stored
}

func validate(secret *models.Secret) error {
	if secret == nil {
		return fmt.Errorf("%w: secret is required", ErrInvalidSecret)
	}
	if strings.TrimSpace(secret.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSecret)
	}
	if secret.Value == "" {
		return fmt.Errorf("%w: value is required", ErrInvalidSecret)
	}
	return nil
}

func recordOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SecretOperationsTotal.WithLabelValues(operation, status).Inc()
}
