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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/api/middleware"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

// ListSecrets (GET /api/v1/secrets). Values are never listed.
func (s *APIServer) ListSecrets(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	all, err := s.secrets.GetAllRaw(c.Request.Context())
	if err != nil {
		respondError(c, log, "Failed to list secrets", err)
		return
	}

	items := make([]models.SecretSummary, len(all))
	for i, secret := range all {
		items[i] = secret.Summary()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"count":   len(items),
		"secrets": items,
	})
}

// GetSecret (GET /api/v1/secrets/:name)
func (s *APIServer) GetSecret(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)
	name := c.Param("name")

	secret, err := s.secrets.GetByName(c.Request.Context(), name)
	if err != nil {
		respondError(c, log, "Failed to get secret", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"secret": secret,
	})
}

// SaveSecret (PUT /api/v1/secrets/:name) creates or replaces a secret
func (s *APIServer) SaveSecret(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)
	name := c.Param("name")

	var req models.SaveSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid secret request", slog.String("secret_name", name), slog.Any("error", err))
		badRequest(c, "Request body must be JSON with a non-empty value")
		return
	}

	secret := &models.Secret{
		Name:        name,
		Value:       req.Value,
		Kind:        req.Kind,
		Description: req.Description,
	}
	if err := s.secrets.Save(c.Request.Context(), secret); err != nil {
		respondError(c, log, "Failed to save secret", err)
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse(fmt.Sprintf("Secret '%s' saved", name)))
}

// DeleteSecret (DELETE /api/v1/secrets/:name)
func (s *APIServer) DeleteSecret(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)
	name := c.Param("name")

	if err := s.secrets.Delete(c.Request.Context(), name); err != nil {
		respondError(c, log, "Failed to delete secret", err)
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse(fmt.Sprintf("Secret '%s' deleted", name)))
}
