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

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/credentials"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/rotation"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/secrets"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/storage"
)

// KeyGenerator produces random keys for operators
type KeyGenerator interface {
	GenerateKey(lengthBytes int) (string, error)
}

// APIServer serves the admin REST API
type APIServer struct {
	secrets     *secrets.SecretStore
	credentials *credentials.Service
	rotation    *rotation.KeyRotationService
	keys        KeyGenerator
	logger      *slog.Logger
}

// NewAPIServer creates a new API server with dependencies
func NewAPIServer(
	secretStore *secrets.SecretStore,
	credentialService *credentials.Service,
	rotationService *rotation.KeyRotationService,
	keys KeyGenerator,
	logger *slog.Logger,
) *APIServer {
	return &APIServer{
		secrets:     secretStore,
		credentials: credentialService,
		rotation:    rotationService,
		keys:        keys,
		logger:      logger,
	}
}

// RegisterRoutes mounts /health unauthenticated and the /api/v1 group behind guards
func (s *APIServer) RegisterRoutes(r gin.IRouter, guards ...gin.HandlerFunc) {
	r.GET("/health", s.HealthCheck)

	v1 := r.Group("/api/v1", guards...)

	v1.GET("/secrets", s.ListSecrets)
	v1.GET("/secrets/:name", s.GetSecret)
	v1.PUT("/secrets/:name", s.SaveSecret)
	v1.DELETE("/secrets/:name", s.DeleteSecret)

	v1.POST("/credentials", s.CreateCredential)
	v1.GET("/credentials", s.ListCredentials)
	v1.GET("/credentials/:id", s.GetCredential)
	v1.POST("/credentials/:id/revoke", s.RevokeCredential)
	v1.DELETE("/credentials/:id", s.DeleteCredential)
	v1.GET("/credentials/:id/usage", s.CredentialUsage)
	v1.GET("/owners/:ownerId/usage", s.OwnerUsage)

	v1.POST("/security/rotate-key", s.RotateKey)
	v1.POST("/security/migrate", s.MigrateUnencrypted)
	v1.POST("/security/generate-key", s.GenerateKey)
}

// HealthCheck (GET /health)
func (s *APIServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// respondError maps service errors onto HTTP statuses. Internal failures are
// logged and reported without detail.
func respondError(c *gin.Context, log *slog.Logger, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, secrets.ErrInvalidSecret),
		errors.Is(err, credentials.ErrInvalidRequest),
		errors.Is(err, credentials.ErrInvalidKind),
		errors.Is(err, rotation.ErrEmptyPassphrase),
		errors.Is(err, encryption.ErrInvalidKeyLength):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error(msg, slog.Any("error", err))
		c.JSON(status, models.NewErrorResponse(msg))
		return
	}

	log.Warn(msg, slog.Any("error", err), slog.Int("status", status))
	c.JSON(status, models.NewErrorResponse(err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.NewErrorResponse(msg))
}
