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

package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/api/middleware"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
)

type recordingToucher struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingToucher) TouchLastUsed(_ context.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

type upstreamCall struct {
	body    string
	headers http.Header
	path    string
}

func newUpstream(t *testing.T) (*httptest.Server, chan upstreamCall) {
	t.Helper()
	calls := make(chan upstreamCall, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls <- upstreamCall{body: string(body), headers: r.Header.Clone(), path: r.URL.Path}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newRouter(t *testing.T, upstreamURL string, toucher SecretToucher, resource string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p, err := NewToolProxy(
		&config.UpstreamConfig{URL: upstreamURL, Timeout: 5 * time.Second},
		&config.AuthConfig{APIKeyHeader: "X-API-Key"},
		toucher, logger)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/mcp", func(c *gin.Context) {
		if resource != "" {
			c.Set(middleware.ResourceNameKey, resource)
		}
		c.Next()
	}, p.Handler())
	return router
}

func TestToolProxy_ForwardsRequest(t *testing.T) {
	upstream, calls := newUpstream(t)
	toucher := &recordingToucher{}
	router := newRouter(t, upstream.URL, toucher, "sales")

	payload := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ExecuteQuery"}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer user-key")
	req.Header.Set("X-API-Key", "user-key")
	req.Header.Set("Mcp-Session-Id", "session-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, w.Body.String())

	call := <-calls
	assert.Equal(t, payload, call.body)
	assert.Equal(t, "/mcp", call.path)
	assert.Empty(t, call.headers.Get("Authorization"))
	assert.Empty(t, call.headers.Get("X-API-Key"))
	assert.Equal(t, "session-1", call.headers.Get("Mcp-Session-Id"))
	assert.NotEmpty(t, call.headers.Get("X-Forwarded-For"))

	assert.Equal(t, []string{"sales"}, toucher.names)
}

func TestToolProxy_NoResourceNoTouch(t *testing.T) {
	upstream, calls := newUpstream(t)
	toucher := &recordingToucher{}
	router := newRouter(t, upstream.URL, toucher, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"method":"ping"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	<-calls
	assert.Empty(t, toucher.names)
}

func TestToolProxy_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	router := newRouter(t, url, &recordingToucher{}, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"method":"ping"}`)))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"bad_gateway","message":"Upstream tool server unavailable"}`, w.Body.String())
}

func TestNewToolProxy_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, raw := range []string{"", "localhost:3002", "://bad"} {
		_, err := NewToolProxy(&config.UpstreamConfig{URL: raw}, &config.AuthConfig{}, &recordingToucher{}, logger)
		assert.Error(t, err, raw)
	}
}
