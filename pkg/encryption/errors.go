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
	"errors"
	"fmt"
)

// ErrKeyCollision indicates a generated key matched the master passphrase
var ErrKeyCollision = errors.New("generated key collides with the master key")

// ErrInvalidKeyLength indicates a non-positive key length was requested
var ErrInvalidKeyLength = errors.New("key length must be greater than zero")

// ErrEncryptionFailed indicates encryption operation failed
type ErrEncryptionFailed struct {
	ProviderName string
	Cause        error
}

func (e *ErrEncryptionFailed) Error() string {
	return fmt.Sprintf("encryption failed for provider %s: %v", e.ProviderName, e.Cause)
}

func (e *ErrEncryptionFailed) Unwrap() error {
	return e.Cause
}

// ErrDecryptionFailed indicates a marked value could not be opened.
// Reason is one of "encoding", "length" or "authentication".
type ErrDecryptionFailed struct {
	ProviderName string
	Reason       string
	Cause        error
}

func (e *ErrDecryptionFailed) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("decryption failed for provider %s: %s", e.ProviderName, e.Reason)
	}
	return fmt.Sprintf("decryption failed for provider %s: %s: %v", e.ProviderName, e.Reason, e.Cause)
}

func (e *ErrDecryptionFailed) Unwrap() error {
	return e.Cause
}

// ErrInvalidKeySize indicates encryption key has wrong size
type ErrInvalidKeySize struct {
	Expected int
	Actual   int
}

func (e *ErrInvalidKeySize) Error() string {
	return fmt.Sprintf("invalid key size: expected %d bytes, got %d bytes", e.Expected, e.Actual)
}
