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
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey("passphrase", testLogger())
	b := DeriveKey("passphrase", testLogger())
	c := DeriveKey("other", testLogger())

	assert.Len(t, a.Data, AESKeySize)
	assert.Equal(t, a.Data, b.Data)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.Data, c.Data)
	assert.Len(t, a.Fingerprint, 8)
}

func TestNewAESGCMProvider_InvalidKeySize(t *testing.T) {
	_, err := NewAESGCMProvider(&Key{Data: []byte("short")}, testLogger())
	require.Error(t, err)

	var sizeErr *encryption.ErrInvalidKeySize
	require.True(t, errors.As(err, &sizeErr))
	assert.Equal(t, AESKeySize, sizeErr.Expected)
	assert.Equal(t, 5, sizeErr.Actual)

	_, err = NewAESGCMProvider(nil, testLogger())
	assert.Error(t, err)
}

func TestAESGCMProvider_EncryptDecrypt(t *testing.T) {
	provider, err := NewAESGCMProvider(DeriveKey("passphrase", testLogger()), testLogger())
	require.NoError(t, err)
	assert.Equal(t, "aesgcm", provider.Name())

	sealed, err := provider.Encrypt([]byte("hello"))
	require.NoError(t, err)
	assert.Len(t, sealed, NonceSize+len("hello")+TagSize)

	opened, err := provider.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), opened)

	require.NoError(t, provider.HealthCheck())
}

func TestAESGCMProvider_DecryptTooShort(t *testing.T) {
	provider, err := NewAESGCMProvider(DeriveKey("passphrase", testLogger()), testLogger())
	require.NoError(t, err)

	_, err = provider.Decrypt(make([]byte, NonceSize))
	var decErr *encryption.ErrDecryptionFailed
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, "length", decErr.Reason)
}

func TestAESGCMProvider_DecryptTampered(t *testing.T) {
	provider, err := NewAESGCMProvider(DeriveKey("passphrase", testLogger()), testLogger())
	require.NoError(t, err)

	sealed, err := provider.Encrypt([]byte("hello"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = provider.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewFactory(t *testing.T) {
	factory := NewFactory("", testLogger())

	c1, err := factory("first")
	require.NoError(t, err)
	c2, err := factory("second")
	require.NoError(t, err)

	ct, err := c1.Encrypt("value")
	require.NoError(t, err)
	assert.Equal(t, "value", c1.Decrypt(ct))
	assert.Equal(t, ct, c2.Decrypt(ct))
}
