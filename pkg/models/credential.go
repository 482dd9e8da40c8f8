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

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CredentialKind is the privilege class of a principal
type CredentialKind string

const (
	// CredentialKindMaster is the process-level passphrase. It is never stored.
	CredentialKindMaster CredentialKind = "master"
	CredentialKindAdmin  CredentialKind = "admin"
	CredentialKindUser   CredentialKind = "user"
)

// ParseCredentialKind parses a stored kind case-insensitively
func ParseCredentialKind(s string) (CredentialKind, error) {
	switch CredentialKind(strings.ToLower(strings.TrimSpace(s))) {
	case CredentialKindMaster:
		return CredentialKindMaster, nil
	case CredentialKindAdmin:
		return CredentialKindAdmin, nil
	case CredentialKindUser:
		return CredentialKindUser, nil
	default:
		return "", fmt.Errorf("unknown credential kind: %q", s)
	}
}

// CredentialState is the lifecycle state of a credential.
// Active -> Revoked (soft, row kept), Active|Revoked -> Deleted (row removed).
type CredentialState string

const (
	CredentialStateActive  CredentialState = "active"
	CredentialStateRevoked CredentialState = "revoked"
	CredentialStateDeleted CredentialState = "deleted"
)

// CanTransitionTo reports whether the state machine allows moving to next.
// Revoking an already revoked credential is allowed so revocation stays idempotent.
func (s CredentialState) CanTransitionTo(next CredentialState) bool {
	switch s {
	case CredentialStateActive:
		return next == CredentialStateRevoked || next == CredentialStateDeleted
	case CredentialStateRevoked:
		return next == CredentialStateRevoked || next == CredentialStateDeleted
	default:
		return false
	}
}

// ResourceNames is a set of resource names persisted as a JSON array
type ResourceNames []string

// Value implements driver.Valuer
func (r ResourceNames) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource names: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (r *ResourceNames) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type for resource names: %T", src)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*r = nil
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return fmt.Errorf("failed to unmarshal resource names: %w", err)
	}
	*r = names
	return nil
}

// Contains reports whether name matches an entry case-insensitively
func (r ResourceNames) Contains(name string) bool {
	for _, n := range r {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Credential is a stored API key. SecretValue holds ciphertext once persisted
// and is never serialized.
type Credential struct {
	ID                   string          `json:"id" db:"id"`
	Name                 string          `json:"name" db:"name"`
	SecretValue          string          `json:"-" db:"key_value"`
	OwnerID              string          `json:"ownerId" db:"owner_id"`
	CreatedAt            time.Time       `json:"createdAt" db:"created_at"`
	ExpirationDate       *time.Time      `json:"expirationDate,omitempty" db:"expiration_date"`
	LastUsed             *time.Time      `json:"lastUsed,omitempty" db:"last_used"`
	State                CredentialState `json:"state" db:"state"`
	Kind                 CredentialKind  `json:"kind" db:"kind"`
	Description          string          `json:"description" db:"description"`
	AllowedResourceNames ResourceNames   `json:"allowedResourceNames,omitempty" db:"allowed_resource_names"`
}

// IsActive reports whether the credential is in the active state
func (c *Credential) IsActive() bool {
	return c.State == CredentialStateActive
}

// IsExpired checks if the credential has expired at the given instant
func (c *Credential) IsExpired(now time.Time) bool {
	return c.ExpirationDate != nil && now.After(*c.ExpirationDate)
}

// IsUnrestricted reports whether the credential may touch any resource
func (c *Credential) IsUnrestricted() bool {
	return len(c.AllowedResourceNames) == 0
}

// CredentialResponse is the external shape of a credential. Key is only set in
// the creation response.
type CredentialResponse struct {
	ID                   string         `json:"id" yaml:"id"`
	Name                 string         `json:"name" yaml:"name"`
	Key                  *string        `json:"key,omitempty" yaml:"key,omitempty"`
	OwnerID              string         `json:"ownerId" yaml:"ownerId"`
	CreatedAt            time.Time      `json:"createdAt" yaml:"createdAt"`
	ExpirationDate       *time.Time     `json:"expirationDate,omitempty" yaml:"expirationDate,omitempty"`
	LastUsed             *time.Time     `json:"lastUsed,omitempty" yaml:"lastUsed,omitempty"`
	IsActive             bool           `json:"isActive" yaml:"isActive"`
	Kind                 CredentialKind `json:"kind" yaml:"kind"`
	Description          string         `json:"description" yaml:"description"`
	AllowedResourceNames []string       `json:"allowedResourceNames,omitempty" yaml:"allowedResourceNames,omitempty"`
}

// ToResponse builds the external shape. Pass the plaintext key only when
// answering the creation request.
func (c *Credential) ToResponse(plaintextKey *string) *CredentialResponse {
	return &CredentialResponse{
		ID:                   c.ID,
		Name:                 c.Name,
		Key:                  plaintextKey,
		OwnerID:              c.OwnerID,
		CreatedAt:            c.CreatedAt,
		ExpirationDate:       c.ExpirationDate,
		LastUsed:             c.LastUsed,
		IsActive:             c.IsActive(),
		Kind:                 c.Kind,
		Description:          c.Description,
		AllowedResourceNames: c.AllowedResourceNames,
	}
}

// CreateCredentialRequest is the input for issuing a new credential
type CreateCredentialRequest struct {
	Name                 string     `json:"name" binding:"required"`
	OwnerID              string     `json:"ownerId" binding:"required"`
	Kind                 string     `json:"kind"`
	Description          string     `json:"description"`
	ExpirationDate       *time.Time `json:"expirationDate,omitempty"`
	AllowedResourceNames []string   `json:"allowedResourceNames,omitempty"`
}
