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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/vault"
)

const testMasterKey = "router-test-master-key"

type harness struct {
	router   *gin.Engine
	upstream atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.upstream.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"rows":[]}}`))
	}))
	t.Cleanup(upstream.Close)

	t.Setenv("MCP_VAULT_DATA_DIR", t.TempDir())
	t.Setenv("MCP_VAULT_MASTER_KEY", testMasterKey)
	t.Setenv("MCP_VAULT_ENCRYPTION_KEY", "router-test-passphrase")
	t.Setenv("MCP_VAULT_UPSTREAM_URL", upstream.URL)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := vault.New(context.Background(), cfg, log)
	require.NoError(t, err)

	h.router, err = newRouter(cfg, svc, log)
	require.NoError(t, err)
	return h
}

func (h *harness) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-API-Key", token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w.Code, decoded
}

func toolCall(tool, connection string) gin.H {
	return gin.H{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": gin.H{
			"name":      tool,
			"arguments": gin.H{"connectionName": connection},
		},
	}
}

func TestRouter_EndToEnd(t *testing.T) {
	h := newHarness(t)

	status, _ := h.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := h.call(t, http.MethodGet, "/api/v1/secrets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication required", body["message"])

	status, _ = h.call(t, http.MethodPut, "/api/v1/secrets/sales", testMasterKey, gin.H{"value": "Server=sales;Password=x"})
	require.Equal(t, http.StatusOK, status)

	status, body = h.call(t, http.MethodPost, "/api/v1/credentials", testMasterKey, gin.H{
		"name":                 "analyst",
		"ownerId":              "alice",
		"allowedResourceNames": []string{"Sales"},
	})
	require.Equal(t, http.StatusCreated, status)
	cred := body["credential"].(map[string]any)
	userKey := cred["key"].(string)
	credID := cred["id"].(string)

	// in scope
	status, body = h.call(t, http.MethodPost, "/mcp", userKey, toolCall("ExecuteQuery", "sales"))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "result")
	assert.EqualValues(t, 1, h.upstream.Load())

	// resource out of scope
	status, body = h.call(t, http.MethodPost, "/mcp", userKey, toolCall("ExecuteQuery", "hr"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Access denied to connection 'hr'", body["message"])

	// capability out of scope
	status, body = h.call(t, http.MethodPost, "/mcp", userKey, toolCall("DropDatabase", "sales"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Operation not permitted", body["message"])
	assert.EqualValues(t, 1, h.upstream.Load())

	// user keys cannot reach the admin API
	status, body = h.call(t, http.MethodGet, "/api/v1/secrets", userKey, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Insufficient privileges", body["message"])

	status, body = h.call(t, http.MethodGet, "/api/v1/secrets", testMasterKey, nil)
	require.Equal(t, http.StatusOK, status)
	listed := body["secrets"].([]any)[0].(map[string]any)
	assert.NotEmpty(t, listed["lastUsed"])

	status, body = h.call(t, http.MethodGet, "/api/v1/credentials/"+credID+"/usage", testMasterKey, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, _ = h.call(t, http.MethodPost, "/api/v1/credentials/"+credID+"/revoke", testMasterKey, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = h.call(t, http.MethodPost, "/mcp", userKey, toolCall("ExecuteQuery", "sales"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Invalid authentication", body["message"])
}

func TestRouter_AdminCredentialManagesAPI(t *testing.T) {
	h := newHarness(t)

	status, body := h.call(t, http.MethodPost, "/api/v1/credentials", testMasterKey, gin.H{
		"name": "ops", "ownerId": "bob", "kind": "admin",
	})
	require.Equal(t, http.StatusCreated, status)
	adminKey := body["credential"].(map[string]any)["key"].(string)

	status, body = h.call(t, http.MethodPost, "/api/v1/security/generate-key", adminKey, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["key"])

	// admin keys skip tool scope checks
	status, _ = h.call(t, http.MethodPost, "/mcp", adminKey, toolCall("DropDatabase", "anything"))
	assert.Equal(t, http.StatusOK, status)
}
