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
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/credentials"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/metrics"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

// Context keys
const (
	PrincipalKey    = "auth_principal"
	ResourceNameKey = "auth_resource_name"
)

// authState is the per-request authorization state
type authState string

const (
	stateStart              authState = "START"
	stateTokenExtracted     authState = "TOKEN_EXTRACTED"
	stateCredentialResolved authState = "CREDENTIAL_RESOLVED"
	stateScopeChecked       authState = "SCOPE_CHECKED"
	stateAllowed            authState = "ALLOWED"
	stateDenied             authState = "DENIED"
	stateUnauthenticated    authState = "UNAUTHENTICATED"
)

// Error codes of the {error, message} body
const (
	errCodeUnauthorized = "unauthorized"
	errCodeForbidden    = "forbidden"
	errCodeInternal     = "internal_error"
)

// CredentialValidator resolves presented tokens and records credential usage
type CredentialValidator interface {
	ValidateCredential(ctx context.Context, token string) (*models.Credential, error)
	LogUsage(ctx context.Context, entry *models.UsageLogEntry) error
}

// AuthorizationGateway authenticates every request and enforces capability and
// resource scope for user credentials on the tool endpoint
type AuthorizationGateway struct {
	validator CredentialValidator
	cfg       config.AuthConfig
	allowed   map[string]struct{}
	logger    *slog.Logger
}

// NewAuthorizationGateway creates a new authorization gateway
func NewAuthorizationGateway(validator CredentialValidator, cfg *config.AuthConfig, logger *slog.Logger) *AuthorizationGateway {
	ops := cfg.AllowedOperations
	if len(ops) == 0 {
		ops = config.DefaultAllowedOperations
	}
	allowed := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		allowed[op] = struct{}{}
	}

	return &AuthorizationGateway{
		validator: validator,
		cfg:       *cfg,
		allowed:   allowed,
		logger:    logger,
	}
}

// decision is the outcome of one authorization step that ends the request
type decision struct {
	state   authState
	status  int
	code    string
	message string
	reason  string
}

// Middleware returns the gin handler
func (g *AuthorizationGateway) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLogger(c, g.logger)
		trace := func(state authState, attrs ...any) {
			log.Debug("Authorization state", append([]any{slog.String("auth_state", string(state))}, attrs...)...)
		}
		trace(stateStart, slog.String("path", c.Request.URL.Path))

		isTool := g.isToolEndpoint(c.Request)
		var payload toolPayload
		if isTool {
			body, complete := bufferBody(c.Request, g.cfg.MaxBodyBytes)
			if !complete {
				log.Warn("Tool request body not inspected", slog.Int64("max_body_bytes", g.cfg.MaxBodyBytes))
			}
			payload = parseToolPayload(body)
		}

		token, source, d := g.extractToken(c, payload)
		if d != nil {
			g.abort(c, log, d)
			return
		}
		trace(stateTokenExtracted, slog.String("token_source", source))

		if g.cfg.MasterKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(g.cfg.MasterKey)) == 1 {
			c.Set(PrincipalKey, models.MasterPrincipal())
			c.Set(LoggerKey, log.With(slog.String("principal_kind", string(models.CredentialKindMaster))))
			metrics.AuthDecisionsTotal.WithLabelValues(string(stateAllowed), "master").Inc()
			trace(stateAllowed, slog.Bool("master", true))
			c.Next()
			return
		}

		cred, err := g.validator.ValidateCredential(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, credentials.ErrCredentialInvalid) {
				reason := "invalid_credential"
				if errors.Is(err, credentials.ErrCredentialExpired) {
					reason = "expired_credential"
				}
				g.abort(c, log, &decision{stateDenied, http.StatusForbidden, errCodeForbidden, "Invalid authentication", reason})
				return
			}
			log.Error("Credential validation failed", slog.Any("error", err))
			g.abort(c, log, &decision{stateDenied, http.StatusInternalServerError, errCodeInternal, "Authorization failure", "validation_error"})
			return
		}
		if cred == nil {
			g.abort(c, log, &decision{stateDenied, http.StatusForbidden, errCodeForbidden, "Invalid authentication", "invalid_credential"})
			return
		}
		trace(stateCredentialResolved,
			slog.String("credential_id", cred.ID),
			slog.String("kind", string(cred.Kind)))
		log = log.With(
			slog.String("credential_id", cred.ID),
			slog.String("principal_kind", string(cred.Kind)))

		resource, d := g.checkScope(log, cred, isTool, payload)
		if d != nil {
			g.abort(c, log, d)
			return
		}
		trace(stateScopeChecked, slog.String("resource", resource))

		g.logUsage(c, log, cred)

		c.Set(PrincipalKey, models.PrincipalFromCredential(cred))
		if resource != "" {
			c.Set(ResourceNameKey, resource)
		}
		c.Set(LoggerKey, log)
		metrics.AuthDecisionsTotal.WithLabelValues(string(stateAllowed), string(cred.Kind)).Inc()
		trace(stateAllowed)
		c.Next()
	}
}

func (g *AuthorizationGateway) isToolEndpoint(r *http.Request) bool {
	return r.Method == g.cfg.ToolMethod && r.URL.Path == g.cfg.ToolPath
}

// extractToken applies the token precedence: Bearer header, API key header,
// then the body field on the tool endpoint. A non-nil decision ends the request.
func (g *AuthorizationGateway) extractToken(c *gin.Context, payload toolPayload) (string, string, *decision) {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
		value = strings.TrimSpace(value)
		if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
			return "", "", &decision{stateUnauthenticated, http.StatusUnauthorized, errCodeUnauthorized,
				"Invalid Authorization format", "malformed_authorization"}
		}
		return value, "bearer", nil
	}

	if key := strings.TrimSpace(c.GetHeader(g.cfg.APIKeyHeader)); key != "" {
		return key, "header", nil
	}

	if payload != nil && g.cfg.BodyTokenField != "" {
		if key := payload.lookupString(g.cfg.BodyTokenField); key != "" {
			return key, "body", nil
		}
	}

	return "", "", &decision{stateUnauthenticated, http.StatusUnauthorized, errCodeUnauthorized,
		"Authentication required", "missing_token"}
}

// checkScope enforces capability and resource scope. It returns the resource
// name the request targets, if any. A panic becomes a 500 decision.
func (g *AuthorizationGateway) checkScope(log *slog.Logger, cred *models.Credential, isTool bool, payload toolPayload) (resource string, d *decision) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Scope evaluation failed", slog.Any("panic", r))
			metrics.PanicRecoveriesTotal.WithLabelValues("authorization").Inc()
			resource = ""
			d = &decision{stateDenied, http.StatusInternalServerError, errCodeInternal,
				"Authorization failure", "scope_evaluation_failed"}
		}
	}()

	if !isTool {
		return "", nil
	}
	names, wellFormed := payload.resourceNames(g.cfg.ResourceParam)
	if len(names) > 0 {
		resource = names[0]
	}
	if cred.Kind != models.CredentialKindUser {
		return resource, nil
	}

	operation := payload.operationName()
	if _, ok := g.allowed[operation]; !ok || operation == "" {
		return "", &decision{stateDenied, http.StatusForbidden, errCodeForbidden,
			"Operation not permitted", "operation_not_permitted"}
	}

	if !wellFormed {
		return "", &decision{stateDenied, http.StatusForbidden, errCodeForbidden,
			"Invalid connection parameter", "malformed_resource"}
	}
	if !cred.IsUnrestricted() {
		// every named connection must be in scope, whichever one the tool reads
		for _, name := range names {
			if !cred.AllowedResourceNames.Contains(name) {
				return "", &decision{stateDenied, http.StatusForbidden, errCodeForbidden,
					fmt.Sprintf("Access denied to connection '%s'", name), "resource_not_permitted"}
			}
		}
	}
	return resource, nil
}

func (g *AuthorizationGateway) logUsage(c *gin.Context, log *slog.Logger, cred *models.Credential) {
	entry := &models.UsageLogEntry{
		CredentialID: cred.ID,
		OwnerID:      cred.OwnerID,
		Resource:     c.Request.URL.Path,
		Method:       c.Request.Method,
		SourceIP:     c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	}
	if err := g.validator.LogUsage(c.Request.Context(), entry); err != nil {
		log.Warn("Failed to record credential usage", slog.Any("error", err))
	}
}

func (g *AuthorizationGateway) abort(c *gin.Context, log *slog.Logger, d *decision) {
	metrics.AuthDecisionsTotal.WithLabelValues(string(d.state), d.reason).Inc()
	log.Info("Request not authorized",
		slog.String("auth_state", string(d.state)),
		slog.Int("status", d.status),
		slog.String("reason", d.reason),
		slog.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(d.status, models.ErrorResponse{Error: d.code, Message: d.message})
}

// GetPrincipal returns the principal the gateway attached to the request
func GetPrincipal(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok && p != nil
}

// GetResourceName returns the resource name an admitted tool request targets
func GetResourceName(c *gin.Context) string {
	return c.GetString(ResourceNameKey)
}
