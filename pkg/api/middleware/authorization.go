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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

// RequireKinds admits requests whose principal has one of kinds. The master
// principal always passes. It must run after the authorization gateway.
func RequireKinds(logger *slog.Logger, kinds ...models.CredentialKind) gin.HandlerFunc {
	allowed := make(map[models.CredentialKind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}

	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			GetLogger(c, logger).Debug("authorization: no principal in context; rejecting request",
				slog.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error:   errCodeForbidden,
				Message: "Insufficient privileges",
			})
			return
		}

		if principal.IsMaster {
			c.Next()
			return
		}
		if _, ok := allowed[principal.Kind]; ok {
			c.Next()
			return
		}

		GetLogger(c, logger).Debug("authorization: principal kind not allowed",
			slog.String("kind", string(principal.Kind)),
			slog.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
			Error:   errCodeForbidden,
			Message: "Insufficient privileges",
		})
	}
}
