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

package models

import "time"

// DefaultSecretKind is applied when a secret is saved without a kind
const DefaultSecretKind = "SqlServer"

// Secret is a named sensitive value. Value is plaintext at the API boundary
// and ciphertext in the database.
type Secret struct {
	Name        string     `json:"name" yaml:"name" db:"name"`
	Value       string     `json:"value" yaml:"value" db:"value"`
	Kind        string     `json:"kind" yaml:"kind" db:"kind"`
	Description *string    `json:"description,omitempty" yaml:"description,omitempty" db:"description"`
	LastUsed    *time.Time `json:"lastUsed,omitempty" yaml:"lastUsed,omitempty" db:"last_used"`
	CreatedOn   time.Time  `json:"createdOn" yaml:"createdOn" db:"created_on"`
}

// SecretSummary is the listing shape of a secret, without its value
type SecretSummary struct {
	Name        string     `json:"name" yaml:"name"`
	Kind        string     `json:"kind" yaml:"kind"`
	Description *string    `json:"description,omitempty" yaml:"description,omitempty"`
	LastUsed    *time.Time `json:"lastUsed,omitempty" yaml:"lastUsed,omitempty"`
	CreatedOn   time.Time  `json:"createdOn" yaml:"createdOn"`
}

// Summary drops the value
func (s *Secret) Summary() SecretSummary {
	return SecretSummary{
		Name:        s.Name,
		Kind:        s.Kind,
		Description: s.Description,
		LastUsed:    s.LastUsed,
		CreatedOn:   s.CreatedOn,
	}
}

// SaveSecretRequest is the body of a secret save call
type SaveSecretRequest struct {
	Value       string  `json:"value" binding:"required"`
	Kind        string  `json:"kind"`
	Description *string `json:"description,omitempty"`
}
