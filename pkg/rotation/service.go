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

package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/metrics"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

const (
	operationRotate  = "rotate"
	operationMigrate = "migrate"

	// RestartMessage tells the operator how to activate a rotated key
	RestartMessage = "Restart the service with the new key set in MCP_VAULT_ENCRYPTION_KEY " +
		"(or encryption.passphrase); running components still use the previous key"
)

// ErrEmptyPassphrase is returned when rotation is requested without a new passphrase
var ErrEmptyPassphrase = errors.New("new passphrase must not be empty")

// SecretSource is the part of the secret store rotation works on
type SecretSource interface {
	GetAll(ctx context.Context) ([]*models.Secret, error)
	GetAllRaw(ctx context.Context) ([]*models.Secret, error)
	SaveRawDirect(ctx context.Context, secret *models.Secret) error
}

// Result summarizes a rotation or migration batch
type Result struct {
	Processed int      `json:"processed" yaml:"processed"`
	Succeeded int      `json:"succeeded" yaml:"succeeded"`
	Failed    int      `json:"failed" yaml:"failed"`
	Skipped   int      `json:"skipped" yaml:"skipped"`
	Message   string   `json:"message" yaml:"message"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Status maps the result onto the operation envelope status
func (r *Result) Status() models.OperationStatus {
	switch {
	case r.Failed == 0:
		return models.OperationStatusSuccess
	case r.Succeeded > 0:
		return models.OperationStatusPartial
	default:
		return models.OperationStatusError
	}
}

// ToResponse converts the result to the admin operation envelope
func (r *Result) ToResponse() *models.OperationResponse {
	count, failed := r.Succeeded, r.Failed
	return &models.OperationResponse{
		Status:  r.Status(),
		Message: r.Message,
		Count:   &count,
		Failed:  &failed,
		Errors:  r.Errors,
	}
}

// KeyRotationService re-encrypts stored secrets under a new key and encrypts
// legacy plaintext secrets under the current one
type KeyRotationService struct {
	secrets SecretSource
	current encryption.Cipher
	factory encryption.Factory
	logger  *slog.Logger
}

// NewKeyRotationService creates a new rotation service. factory builds the
// cipher for an incoming passphrase.
func NewKeyRotationService(secrets SecretSource, current encryption.Cipher, factory encryption.Factory, logger *slog.Logger) *KeyRotationService {
	return &KeyRotationService{
		secrets: secrets,
		current: current,
		factory: factory,
		logger:  logger,
	}
}

// RotateKey re-encrypts every secret under newPassphrase. Each secret is
// verified before it is written, and a failing secret is left untouched
// without aborting the batch. The live key is not swapped.
func (s *KeyRotationService) RotateKey(ctx context.Context, newPassphrase string) (*Result, error) {
	if strings.TrimSpace(newPassphrase) == "" {
		return nil, ErrEmptyPassphrase
	}

	next, err := s.factory(newPassphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher for new key: %w", err)
	}

	secrets, err := s.secrets.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets for rotation: %w", err)
	}

	s.logger.Info("Starting key rotation", slog.Int("secret_count", len(secrets)))

	result := &Result{}
	var errs *multierror.Error
	for _, secret := range secrets {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		result.Processed++

		err := s.processItem(operationRotate, secret, func() error {
			return s.rotateOne(ctx, next, secret)
		})
		if err != nil {
			result.Failed++
			errs = multierror.Append(errs, err)
			continue
		}
		result.Succeeded++
	}

	result.Errors = errorStrings(errs)
	result.Message = fmt.Sprintf("Rotated %d of %d secrets. %s", result.Succeeded, result.Processed, RestartMessage)
	if result.Failed > 0 {
		result.Message = fmt.Sprintf("Rotated %d of %d secrets, %d failed. %s",
			result.Succeeded, result.Processed, result.Failed, RestartMessage)
	}

	s.logger.Info("Key rotation finished",
		slog.Int("processed", result.Processed),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed))
	return result, nil
}

func (s *KeyRotationService) rotateOne(ctx context.Context, next encryption.Cipher, secret *models.Secret) error {
	if secret.Value == "" {
		return fmt.Errorf("secret %q has an empty value", secret.Name)
	}
	// Decrypt returns its input when the current key cannot open it
	if s.current.IsEncrypted(secret.Value) {
		return fmt.Errorf("secret %q cannot be decrypted with the current key", secret.Name)
	}

	ciphertext, err := encryptVerified(next, secret.Value)
	if err != nil {
		return fmt.Errorf("secret %q: %w", secret.Name, err)
	}

	rotated := *secret
	rotated.Value = ciphertext
	if err := s.secrets.SaveRawDirect(ctx, &rotated); err != nil {
		return fmt.Errorf("secret %q: %w", secret.Name, err)
	}
	return nil
}

// MigrateUnencrypted encrypts every stored plaintext secret under the current
// key. Secrets that are already encrypted are skipped without a write.
func (s *KeyRotationService) MigrateUnencrypted(ctx context.Context) (*Result, error) {
	secrets, err := s.secrets.GetAllRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets for migration: %w", err)
	}

	result := &Result{}
	var errs *multierror.Error
	for _, secret := range secrets {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		result.Processed++

		if s.current.IsEncrypted(secret.Value) {
			result.Skipped++
			metrics.KeyRotationItemsTotal.WithLabelValues(operationMigrate, "skipped").Inc()
			continue
		}

		err := s.processItem(operationMigrate, secret, func() error {
			return s.migrateOne(ctx, secret)
		})
		if err != nil {
			result.Failed++
			errs = multierror.Append(errs, err)
			continue
		}
		result.Succeeded++
	}

	result.Errors = errorStrings(errs)
	result.Message = fmt.Sprintf("Encrypted %d secrets, %d already encrypted, %d failed",
		result.Succeeded, result.Skipped, result.Failed)

	s.logger.Info("Secret migration finished",
		slog.Int("processed", result.Processed),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result, nil
}

func (s *KeyRotationService) migrateOne(ctx context.Context, secret *models.Secret) error {
	if secret.Value == "" {
		return fmt.Errorf("secret %q has an empty value", secret.Name)
	}

	ciphertext, err := encryptVerified(s.current, secret.Value)
	if err != nil {
		return fmt.Errorf("secret %q: %w", secret.Name, err)
	}

	migrated := *secret
	migrated.Value = ciphertext
	if err := s.secrets.SaveRawDirect(ctx, &migrated); err != nil {
		return fmt.Errorf("secret %q: %w", secret.Name, err)
	}
	return nil
}

// processItem runs fn for one secret, converting a panic into an error
func (s *KeyRotationService) processItem(operation string, secret *models.Secret, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicRecoveriesTotal.WithLabelValues(operation).Inc()
			err = fmt.Errorf("secret %q: unexpected failure: %v", secret.Name, r)
		}
		if err != nil {
			s.logger.Error("Failed to process secret",
				slog.String("operation", operation),
				slog.String("secret_name", secret.Name),
				slog.Any("error", err))
			metrics.KeyRotationItemsTotal.WithLabelValues(operation, "failed").Inc()
			return
		}
		metrics.KeyRotationItemsTotal.WithLabelValues(operation, "success").Inc()
	}()
	return fn()
}

// encryptVerified encrypts plaintext and checks that it decrypts back
func encryptVerified(c encryption.Cipher, plaintext string) (string, error) {
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	if !c.IsEncrypted(ciphertext) || c.Decrypt(ciphertext) != plaintext {
		return "", errors.New("verification failed: ciphertext does not decrypt to the original value")
	}
	return ciphertext, nil
}

func errorStrings(errs *multierror.Error) []string {
	if errs == nil {
		return nil
	}
	out := make([]string, 0, len(errs.Errors))
	for _, e := range errs.Errors {
		out = append(out, e.Error())
	}
	return out
}
