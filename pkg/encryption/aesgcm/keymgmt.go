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
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// AESKeySize is the required key size for AES-256 (32 bytes)
	AESKeySize = 32

	// KeyDerivationIterations is the PBKDF2 iteration count
	KeyDerivationIterations = 10000

	// KeyDerivationSalt is the fixed PBKDF2 salt. Changing it invalidates every
	// stored ciphertext.
	KeyDerivationSalt = "mcp-vault.key-derivation.v1"

	// InsecureDefaultPassphrase is used when no passphrase is configured
	InsecureDefaultPassphrase = "DefaultInsecureKey_DoNotUseInProduction!"
)

// Key is a derived AES key. Fingerprint identifies the key in logs without
// revealing it.
type Key struct {
	Fingerprint string
	Data        []byte
}

// DeriveKey stretches a passphrase into an AES-256 key with PBKDF2-SHA256.
// An empty passphrase falls back to InsecureDefaultPassphrase.
func DeriveKey(passphrase string, logger *slog.Logger) *Key {
	if passphrase == "" {
		logger.Warn("No encryption passphrase configured, falling back to the INSECURE built-in default. " +
			"Secrets stored with this key are NOT protected. Set MCP_VAULT_ENCRYPTION_KEY before storing real data.")
		passphrase = InsecureDefaultPassphrase
	}

	data := pbkdf2.Key([]byte(passphrase), []byte(KeyDerivationSalt), KeyDerivationIterations, AESKeySize, sha256.New)
	return &Key{
		Fingerprint: fingerprint(data),
		Data:        data,
	}
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:4])
}
