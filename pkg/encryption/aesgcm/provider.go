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

package aesgcm

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
)

const (
	// NonceSize is the size of the nonce for AES-GCM (12 bytes is standard)
	NonceSize = 12

	// TagSize is the GCM authentication tag size
	TagSize = 16

	providerName = "aesgcm"
)

// AESGCMProvider implements encryption.Provider using AES-GCM
type AESGCMProvider struct {
	name   string
	key    *Key
	aead   cipher.AEAD
	logger *slog.Logger
}

// NewAESGCMProvider creates a new AES-GCM encryption provider for a derived key
func NewAESGCMProvider(key *Key, logger *slog.Logger) (*AESGCMProvider, error) {
	if key == nil || len(key.Data) != AESKeySize {
		actual := 0
		if key != nil {
			actual = len(key.Data)
		}
		return nil, &encryption.ErrInvalidKeySize{Expected: AESKeySize, Actual: actual}
	}

	block, err := aes.NewCipher(key.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	provider := &AESGCMProvider{
		name:   providerName,
		key:    key,
		aead:   gcm,
		logger: logger,
	}

	logger.Info("AES-GCM provider initialized",
		slog.String("provider", provider.name),
		slog.String("key_fingerprint", key.Fingerprint),
	)

	return provider, nil
}

// Name returns the provider identifier
func (p *AESGCMProvider) Name() string {
	return p.name
}

// Encrypt encrypts plaintext using AES-GCM with a random nonce
func (p *AESGCMProvider) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// GCM appends the auth tag to the ciphertext automatically
	ciphertext := p.aead.Seal(nonce, nonce, plaintext, nil)

	p.logger.Debug("Encrypted data with AES-GCM",
		slog.String("key_fingerprint", p.key.Fingerprint),
		slog.Int("plaintext_size", len(plaintext)),
		slog.Int("ciphertext_size", len(ciphertext)),
	)

	return ciphertext, nil
}

// Decrypt decrypts nonce || ciphertext || tag
func (p *AESGCMProvider) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, &encryption.ErrDecryptionFailed{
			ProviderName: p.name,
			Reason:       "length",
			Cause:        fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext)),
		}
	}

	nonce := ciphertext[:NonceSize]
	sealed := ciphertext[NonceSize:]

	plaintext, err := p.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (authentication error): %w", err)
	}

	return plaintext, nil
}

// HealthCheck validates that the provider is properly initialized
func (p *AESGCMProvider) HealthCheck() error {
	testData := []byte("health-check-test-data")
	encrypted, err := p.Encrypt(testData)
	if err != nil {
		return fmt.Errorf("health check encryption failed: %w", err)
	}

	decrypted, err := p.Decrypt(encrypted)
	if err != nil {
		return fmt.Errorf("health check decryption failed: %w", err)
	}

	if !bytes.Equal(decrypted, testData) {
		return fmt.Errorf("health check round-trip failed: data mismatch")
	}

	p.logger.Debug("AES-GCM provider health check passed")
	return nil
}
