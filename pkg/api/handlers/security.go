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
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/api/middleware"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

// RotateKeyRequest is the body of POST /api/v1/security/rotate-key
type RotateKeyRequest struct {
	NewKey string `json:"newKey"`
}

// GenerateKeyRequest is the optional body of POST /api/v1/security/generate-key
type GenerateKeyRequest struct {
	Length int `json:"length"`
}

// RotateKey (POST /api/v1/security/rotate-key). The running process keeps its
// key until restarted with the new passphrase.
func (s *APIServer) RotateKey(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	var req RotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Request body must be JSON with newKey")
		return
	}

	log.Info("Key rotation requested")
	result, err := s.rotation.RotateKey(c.Request.Context(), req.NewKey)
	if err != nil {
		respondError(c, log, "Key rotation failed", err)
		return
	}

	c.JSON(http.StatusOK, result.ToResponse())
}

// MigrateUnencrypted (POST /api/v1/security/migrate)
func (s *APIServer) MigrateUnencrypted(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	log.Info("Plaintext secret migration requested")
	result, err := s.rotation.MigrateUnencrypted(c.Request.Context())
	if err != nil {
		respondError(c, log, "Migration failed", err)
		return
	}

	c.JSON(http.StatusOK, result.ToResponse())
}

// GenerateKey (POST /api/v1/security/generate-key). The body is optional.
func (s *APIServer) GenerateKey(c *gin.Context) {
	log := middleware.GetLogger(c, s.logger)

	var req GenerateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Request body must be JSON")
		return
	}
	if req.Length == 0 {
		req.Length = encryption.DefaultGeneratedKeyLength
	}
	if req.Length < encryption.MinGeneratedKeyLength || req.Length > encryption.MaxGeneratedKeyLength {
		badRequest(c, fmt.Sprintf("Key length must be between %d and %d bytes",
			encryption.MinGeneratedKeyLength, encryption.MaxGeneratedKeyLength))
		return
	}

	key, err := s.keys.GenerateKey(req.Length)
	if err != nil {
		respondError(c, log, "Failed to generate key", err)
		return
	}

	log.Info("Generated encryption key", slog.Int("length", req.Length))
	c.JSON(http.StatusOK, gin.H{
		"status":  models.OperationStatusSuccess,
		"key":     key,
		"length":  req.Length,
		"message": "Generated a new key. Configure it as the encryption passphrase and rotate to it.",
	})
}
