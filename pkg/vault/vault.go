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

// Package vault wires the stores and services from configuration. The server
// and the operator CLI share it.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/credentials"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption/aesgcm"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/rotation"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/secrets"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/storage"
)

// Services is the set of components built from one configuration
type Services struct {
	Cipher      *encryption.CipherService
	Secrets     *secrets.SecretStore
	Credentials *credentials.CredentialStore
	Issuer      *credentials.Service
	Rotation    *rotation.KeyRotationService
}

// New derives the process key, checks the cipher, creates the data directory
// and initializes both store schemas before returning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	cipher, err := aesgcm.NewCipherService(cfg.Encryption.Passphrase, cfg.Auth.MasterKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if err := cipher.HealthCheck(); err != nil {
		return nil, fmt.Errorf("cipher health check failed: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.Storage.DataDir, err)
	}

	secretRepo := storage.NewSecretRepository(cfg.SecretsDBPath(), logger)
	credentialRepo := storage.NewCredentialRepository(cfg.CredentialsDBPath(), logger)
	if err := secretRepo.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize secret store: %w", err)
	}
	if err := credentialRepo.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	secretStore := secrets.NewSecretStore(secretRepo, cipher, logger)
	credentialStore := credentials.NewCredentialStore(credentialRepo, cipher, logger)

	return &Services{
		Cipher:      cipher,
		Secrets:     secretStore,
		Credentials: credentialStore,
		Issuer:      credentials.NewService(credentialStore, cipher, logger),
		Rotation:    rotation.NewKeyRotationService(secretStore, cipher, aesgcm.NewFactory(cfg.Auth.MasterKey, logger), logger),
	}, nil
}
