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
	"fmt"
	"log/slog"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
)

// NewCipherService derives a key from passphrase and returns a cipher service
// backed by an AES-GCM provider
func NewCipherService(passphrase, masterKey string, logger *slog.Logger) (*encryption.CipherService, error) {
	provider, err := NewAESGCMProvider(DeriveKey(passphrase, logger), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aesgcm provider: %w", err)
	}
	return encryption.NewCipherService(provider, masterKey, logger), nil
}

// NewFactory returns an encryption.Factory producing AES-GCM cipher services
func NewFactory(masterKey string, logger *slog.Logger) encryption.Factory {
	return func(passphrase string) (encryption.Cipher, error) {
		svc, err := NewCipherService(passphrase, masterKey, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}
