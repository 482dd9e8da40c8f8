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

package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

// KeyLengthBytes is the number of random bytes in an issued key
const KeyLengthBytes = 48

// ErrInvalidRequest is returned when a creation request fails validation
var ErrInvalidRequest = errors.New("invalid credential request")

// KeyGenerator produces random keys
type KeyGenerator interface {
	GenerateKey(lengthBytes int) (string, error)
}

// Service issues and manages credentials on top of the credential store
type Service struct {
	store  *CredentialStore
	keys   KeyGenerator
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new credential service
func NewService(store *CredentialStore, keys KeyGenerator, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		keys:   keys,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a new credential. The response is the only one that ever
// carries the plaintext key.
func (s *Service) Create(ctx context.Context, req *models.CreateCredentialRequest) (*models.CredentialResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	name := strings.TrimSpace(req.Name)
	owner := strings.TrimSpace(req.OwnerID)
	if name == "" || owner == "" {
		return nil, fmt.Errorf("%w: name and ownerId are required", ErrInvalidRequest)
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.After(s.now()) {
		return nil, fmt.Errorf("%w: expirationDate must be in the future", ErrInvalidRequest)
	}

	kind, err := parseIssuableKind(req.Kind)
	if err != nil {
		return nil, err
	}

	key, err := s.keys.GenerateKey(KeyLengthBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	var allowed models.ResourceNames
	for _, r := range req.AllowedResourceNames {
		if r = strings.TrimSpace(r); r != "" && !allowed.Contains(r) {
			allowed = append(allowed, r)
		}
	}

	saved, err := s.store.Save(ctx, &models.Credential{
		Name:                 name,
		SecretValue:          key,
		OwnerID:              owner,
		ExpirationDate:       req.ExpirationDate,
		State:                models.CredentialStateActive,
		Kind:                 kind,
		Description:          req.Description,
		AllowedResourceNames: allowed,
	})
	if err != nil {
		return nil, err
	}

	return saved.ToResponse(&key), nil
}

// Get returns one credential
func (s *Service) Get(ctx context.Context, id string) (*models.CredentialResponse, error) {
	cred, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return cred.ToResponse(nil), nil
}

// List returns every credential
func (s *Service) List(ctx context.Context) ([]*models.CredentialResponse, error) {
	creds, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return toResponses(creds), nil
}

// ListForOwner returns the credentials of one owner
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]*models.CredentialResponse, error) {
	creds, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return toResponses(creds), nil
}

// Revoke revokes a credential and returns its updated view
func (s *Service) Revoke(ctx context.Context, id string) (*models.CredentialResponse, error) {
	if err := s.store.Revoke(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a credential and its usage history
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// UsageLogs returns usage entries, most recent first
func (s *Service) UsageLogs(ctx context.Context, filter models.UsageFilter) ([]*models.UsageLogEntry, error) {
	return s.store.GetUsageLogs(ctx, filter)
}

func parseIssuableKind(raw string) (models.CredentialKind, error) {
	if strings.TrimSpace(raw) == "" {
		return models.CredentialKindUser, nil
	}
	kind, err := models.ParseCredentialKind(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKind, err)
	}
	if kind == models.CredentialKindMaster {
		return "", fmt.Errorf("%w: master credentials cannot be issued", ErrInvalidKind)
	}
	return kind, nil
}

func toResponses(creds []*models.Credential) []*models.CredentialResponse {
	out := make([]*models.CredentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.ToResponse(nil))
	}
	return out
}
