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
)

func TestCorrelationIDMiddleware_HeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
	}{
		{name: "canonical header", header: CorrelationIDHeader, value: "test-correlation-id-123"},
		{name: "lowercase header", header: "x-correlation-id", value: "lowercase-correlation-id-456"},
		{name: "mixed case header", header: "X-CoRrElAtIoN-Id", value: "mixed-case-id-789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			router := gin.New()
			router.Use(CorrelationIDMiddleware(logger))

			var seen string
			router.GET("/test", func(c *gin.Context) {
				seen = GetCorrelationID(c)
				c.String(http.StatusOK, "OK")
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(tt.header, tt.value)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.value, seen)
			assert.Equal(t, tt.value, w.Header().Get(CorrelationIDHeader))
		})
	}
}

func TestCorrelationIDMiddleware_GenerateNew(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.Use(CorrelationIDMiddleware(logger))

	var seen string
	var scoped *slog.Logger
	router.GET("/test", func(c *gin.Context) {
		seen = GetCorrelationID(c)
		scoped = GetLogger(c, nil)
		c.String(http.StatusOK, "OK")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(CorrelationIDHeader))
	assert.NotNil(t, scoped)
}

func TestGetLogger_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fallbackLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	var got *slog.Logger
	router.GET("/test", func(c *gin.Context) {
		got = GetLogger(c, fallbackLogger)
		c.String(http.StatusOK, "OK")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Same(t, fallbackLogger, got)
}

func TestErrorHandlingMiddleware_RecoversPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.Use(CorrelationIDMiddleware(logger), ErrorHandlingMiddleware(logger), LoggingMiddleware(logger), MetricsMiddleware())
	router.GET("/boom", func(c *gin.Context) {
		panic("handler exploded")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error","message":"Internal server error"}`, w.Body.String())
}
