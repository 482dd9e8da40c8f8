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
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/logger"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/metrics"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/vault"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file (TOML)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(log)

	log.Info("Starting MCP vault",
		slog.String("config_file", *configPath),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.String("upstream_url", cfg.Upstream.URL),
		slog.Bool("master_key_configured", cfg.Auth.MasterKey != ""),
		slog.Bool("metrics_enabled", cfg.Metrics.Enabled),
	)

	metrics.SetEnabled(cfg.Metrics.Enabled)
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(&cfg.Metrics, log)
		if err := metricsServer.Start(); err != nil {
			log.Error("Failed to start metrics server", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		metrics.Init()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	svc, err := vault.New(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("Failed to initialize vault", slog.Any("error", err))
		os.Exit(1)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := newRouter(cfg, svc, log)
	if err != nil {
		log.Error("Failed to build router", slog.Any("error", err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Starting HTTP server", slog.Int("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down MCP vault")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", slog.Any("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(ctx); err != nil {
			log.Error("Metrics server forced to shutdown", slog.Any("error", err))
		}
	}

	log.Info("MCP vault stopped")
}
