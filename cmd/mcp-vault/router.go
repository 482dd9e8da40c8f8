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
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/api/handlers"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/api/middleware"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/proxy"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/vault"
)

// newRouter builds the HTTP surface: the tool endpoint forwarded upstream and
// the admin API, both behind the authorization gateway
func newRouter(cfg *config.Config, svc *vault.Services, log *slog.Logger) (*gin.Engine, error) {
	router := gin.New()

	// CorrelationIDMiddleware must be first so later middleware log with the id
	router.Use(middleware.CorrelationIDMiddleware(log))
	router.Use(middleware.ErrorHandlingMiddleware(log))
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware())
	router.Use(gin.Recovery())

	gateway := middleware.NewAuthorizationGateway(svc.Credentials, &cfg.Auth, log)

	if cfg.Upstream.URL != "" {
		toolProxy, err := proxy.NewToolProxy(&cfg.Upstream, &cfg.Auth, svc.Secrets, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create tool proxy: %w", err)
		}
		router.Handle(cfg.Auth.ToolMethod, cfg.Auth.ToolPath, gateway.Middleware(), toolProxy.Handler())
	} else {
		log.Warn("No upstream configured; tool endpoint disabled", slog.String("tool_path", cfg.Auth.ToolPath))
	}

	apiServer := handlers.NewAPIServer(svc.Secrets, svc.Issuer, svc.Rotation, svc.Cipher, log)
	apiServer.RegisterRoutes(router, gateway.Middleware(), middleware.RequireKinds(log, models.CredentialKindAdmin))

	return router, nil
}
