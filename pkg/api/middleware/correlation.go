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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader is the HTTP header name for correlation ID
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDKey is the Gin context key for correlation ID
	CorrelationIDKey = "correlation_id"
	// LoggerKey is the Gin context key for the correlation-aware logger
	LoggerKey = "logger"
)

// CorrelationIDMiddleware reuses the X-Correlation-ID request header or
// generates a UUID, echoes it on the response, and stores a logger carrying it
// in the Gin context.
func CorrelationIDMiddleware(baseLogger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(CorrelationIDKey, correlationID)
		c.Set(LoggerKey, baseLogger.With(slog.String("correlation_id", correlationID)))
		c.Header(CorrelationIDHeader, correlationID)

		c.Next()
	}
}

// GetLogger retrieves the correlation-aware logger from the Gin context
// If not found, returns the provided fallback logger
func GetLogger(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if logger, exists := c.Get(LoggerKey); exists {
		if l, ok := logger.(*slog.Logger); ok {
			return l
		}
	}
	return fallback
}

// GetCorrelationID retrieves the correlation ID from the Gin context
// Returns empty string if not found
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}
