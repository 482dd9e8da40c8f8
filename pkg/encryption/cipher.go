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

package encryption

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Marker prefixes every value produced by Encrypt. Plaintext secrets are
// assumed never to start with it.
const Marker = "ENC:"

// Bounds for operator-requested keys, in bytes
const (
	DefaultGeneratedKeyLength = 32
	MinGeneratedKeyLength     = 16
	MaxGeneratedKeyLength     = 64
)

// Provider seals and opens raw bytes under a single process key
type Provider interface {
	// Name returns the provider identifier (e.g., "aesgcm")
	Name() string

	// Encrypt returns nonce || ciphertext || tag
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt
	Decrypt(ciphertext []byte) ([]byte, error)

	// HealthCheck validates provider initialization and key availability
	HealthCheck() error
}

// Cipher is the string-level view of the process key used by the stores
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) string
	IsEncrypted(text string) bool
}

// Factory builds a Cipher from a passphrase. Rotation uses it to build the
// cipher for the incoming key.
type Factory func(passphrase string) (Cipher, error)

// CipherService encrypts and decrypts marked string values
type CipherService struct {
	provider  Provider
	masterKey string
	logger    *slog.Logger
}

// NewCipherService creates a cipher service on top of a provider. masterKey is
// only used to reject generated keys that collide with it.
func NewCipherService(provider Provider, masterKey string, logger *slog.Logger) *CipherService {
	return &CipherService{
		provider:  provider,
		masterKey: masterKey,
		logger:    logger,
	}
}

// IsEncrypted reports whether text carries the ciphertext marker
func (s *CipherService) IsEncrypted(text string) bool {
	return strings.HasPrefix(text, Marker)
}

// Encrypt seals plaintext and returns Marker + base64(nonce || ciphertext).
// Already marked input is returned unchanged.
func (s *CipherService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	if s.IsEncrypted(plaintext) {
		s.logger.Warn("Value is already encrypted, returning it unchanged",
			slog.String("provider", s.provider.Name()),
		)
		return plaintext, nil
	}

	sealed, err := s.provider.Encrypt([]byte(plaintext))
	if err != nil {
		return "", &ErrEncryptionFailed{ProviderName: s.provider.Name(), Cause: err}
	}

	return Marker + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a marked value. Unmarked input is returned as is, and a marked
// value that cannot be opened is returned unchanged after logging the failure.
func (s *CipherService) Decrypt(ciphertext string) string {
	plaintext, err := s.open(ciphertext)
	if err != nil {
		var decErr *ErrDecryptionFailed
		reason := "unknown"
		if errors.As(err, &decErr) {
			reason = decErr.Reason
		}
		s.logger.Error("Failed to decrypt value, returning it unchanged",
			slog.String("provider", s.provider.Name()),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		return ciphertext
	}
	return plaintext
}

func (s *CipherService) open(ciphertext string) (string, error) {
	if !s.IsEncrypted(ciphertext) {
		return ciphertext, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, Marker))
	if err != nil {
		return "", &ErrDecryptionFailed{ProviderName: s.provider.Name(), Reason: "encoding", Cause: err}
	}

	plaintext, err := s.provider.Decrypt(raw)
	if err != nil {
		var decErr *ErrDecryptionFailed
		if errors.As(err, &decErr) {
			return "", err
		}
		return "", &ErrDecryptionFailed{ProviderName: s.provider.Name(), Reason: "authentication", Cause: err}
	}

	return string(plaintext), nil
}

// GenerateKey returns base64 encoded random bytes of the given length
func (s *CipherService) GenerateKey(lengthBytes int) (string, error) {
	if lengthBytes <= 0 {
		return "", ErrInvalidKeyLength
	}

	buf := make([]byte, lengthBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	key := base64.StdEncoding.EncodeToString(buf)

	if s.masterKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.masterKey)) == 1 {
		s.logger.Error("Generated key matches the master key")
		return "", ErrKeyCollision
	}

	return key, nil
}

// HealthCheck runs the provider health check
func (s *CipherService) HealthCheck() error {
	if err := s.provider.HealthCheck(); err != nil {
		return fmt.Errorf("provider %s failed health check: %w", s.provider.Name(), err)
	}
	return nil
}
