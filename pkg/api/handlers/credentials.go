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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/api/middleware"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

// CreateCredential (POST /api/v1/credentials). The plaintext key appears in
// this response only.
func (s *APIServer) CreateCredential(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	var req models.CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid credential request", slog.Any("error", err))
		badRequest(c, "Request body must be JSON with name and ownerId")
		return
	}

	created, err := s.credentials.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, log, "Failed to create credential", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     "success",
		"message":    "Credential created. Store the key now; it cannot be shown again.",
		"credential": created,
	})
}

// ListCredentials (GET /api/v1/credentials?ownerId=)
func (s *APIServer) ListCredentials(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	var (
		items []*models.CredentialResponse
		err   error
	)
	if owner := c.Query("ownerId"); owner != "" {
		items, err = s.credentials.ListForOwner(c.Request.Context(), owner)
	} else {
		items, err = s.credentials.List(c.Request.Context())
	}
	if err != nil {
		respondError(c, log, "Failed to list credentials", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"count":       len(items),
		"credentials": items,
	})
}

// GetCredential (GET /api/v1/credentials/:id)
func (s *APIServer) GetCredential(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	cred, err := s.credentials.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, log, "Failed to get credential", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"credential": cred,
	})
}

// RevokeCredential (POST /api/v1/credentials/:id/revoke)
func (s *APIServer) RevokeCredential(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	cred, err := s.credentials.Revoke(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, log, "Failed to revoke credential", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    "Credential revoked",
		"credential": cred,
	})
}

// DeleteCredential (DELETE /api/v1/credentials/:id)
func (s *APIServer) DeleteCredential(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)
	id := c.Param("id")

	if err := s.credentials.Delete(c.Request.Context(), id); err != nil {
		respondError(c, log, "Failed to delete credential", err)
		return
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse(fmt.Sprintf("Credential '%s' deleted", id)))
}

// CredentialUsage (GET /api/v1/credentials/:id/usage?limit=)
func (s *APIServer) CredentialUsage(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	s.usage(c, models.UsageFilter{CredentialID: c.Param("id"), Limit: limit})
}

// OwnerUsage (GET /api/v1/owners/:ownerId/usage?limit=)
func (s *APIServer) OwnerUsage(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	s.usage(c, models.UsageFilter{OwnerID: c.Param("ownerId"), Limit: limit})
}

func (s *APIServer) usage(c *gin.Context, filter models.UsageFilter) {
	log := middleware.GetLogger(c, s.logger)

	entries, err := s.credentials.UsageLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, log, "Failed to read usage logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"count":  len(entries),
		"usage":  entries,
	})
}

// parseLimit reads ?limit=. Absent means the store default.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
