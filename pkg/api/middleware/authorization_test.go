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

package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

func TestRequireKinds(t *testing.T) {
	tests := []struct {
		name      string
		principal *models.Principal
		want      int
	}{
		{name: "no principal", principal: nil, want: http.StatusForbidden},
		{name: "master", principal: models.MasterPrincipal(), want: http.StatusOK},
		{name: "admin", principal: &models.Principal{Kind: models.CredentialKindAdmin}, want: http.StatusOK},
		{name: "user", principal: &models.Principal{Kind: models.CredentialKindUser}, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tt.principal != nil {
					c.Set(PrincipalKey, tt.principal)
				}
				c.Next()
			})
			router.Use(RequireKinds(logger, models.CredentialKindAdmin))
			router.GET("/api/v1/secrets", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/secrets", nil))

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"forbidden","message":"Insufficient privileges"}`, w.Body.String())
			}
		})
	}
}
