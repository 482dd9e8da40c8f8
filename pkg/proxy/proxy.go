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

// Package proxy forwards admitted tool requests to the upstream tool server.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/api/middleware"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/metrics"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

// SecretToucher records that a stored connection secret was used
type SecretToucher interface {
	TouchLastUsed(ctx context.Context, name string)
}

// ToolProxy is a reverse proxy in front of the tool server
type ToolProxy struct {
	proxy   *httputil.ReverseProxy
	secrets SecretToucher
	logger  *slog.Logger
}

// NewToolProxy creates a proxy to upstream.URL. Gateway credentials are
// stripped from forwarded requests.
func NewToolProxy(upstream *config.UpstreamConfig, auth *config.AuthConfig, secrets SecretToucher, logger *slog.Logger) (*ToolProxy, error) {
	target, err := url.Parse(upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", upstream.URL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme and host are required", upstream.URL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = upstream.Timeout

	p := &ToolProxy{secrets: secrets, logger: logger}
	p.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
			r.Out.Header.Del("Authorization")
			if auth.APIKeyHeader != "" {
				r.Out.Header.Del(auth.APIKeyHeader)
			}
		},
		Transport:     transport,
		FlushInterval: -1,
		ErrorHandler:  p.handleError,
	}
	return p, nil
}

// Handler forwards the request. It must run after the authorization gateway.
func (p *ToolProxy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name := middleware.GetResourceName(c); name != "" {
			p.secrets.TouchLastUsed(c.Request.Context(), name)
		}
		p.proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func (p *ToolProxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("Upstream tool server request failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	metrics.UpstreamErrorsTotal.WithLabelValues(r.URL.Path).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   "bad_gateway",
		Message: "Upstream tool server unavailable",
	})
}
