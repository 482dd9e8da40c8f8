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

package config

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables used to configure the vault
	EnvPrefix = "MCP_VAULT_"

	// SecretsDBFile and CredentialsDBFile are created under storage.data_dir
	SecretsDBFile     = "secrets.db"
	CredentialsDBFile = "credentials.db"
)

// DefaultAllowedOperations are the read-oriented operations a user credential may invoke
var DefaultAllowedOperations = []string{
	"initialize",
	"notifications/initialized",
	"ping",
	"tools/list",
	"GetTableMetadata",
	"GetDatabaseObjectsMetadata",
	"GetDatabaseObjectsByType",
	"GetSqlServerAgentJobs",
	"GetSqlServerAgentJobDetails",
	"GetSsisCatalogInfo",
	"GetAzureDevOpsInfo",
	"ExecuteQuery",
	"ListConnections",
	"TestConnection",
}

// Config holds all configuration for the vault
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Encryption EncryptionConfig `koanf:"encryption"`
	Auth       AuthConfig       `koanf:"auth"`
	Upstream   UpstreamConfig   `koanf:"upstream"`
	Logging    LoggingConfig    `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StorageConfig holds the embedded store location
type StorageConfig struct {
	DataDir string `koanf:"data_dir"`
}

// EncryptionConfig holds the passphrase the process key is derived from
type EncryptionConfig struct {
	Passphrase string `koanf:"passphrase"`
}

// AuthConfig holds the authorization gateway configuration
type AuthConfig struct {
	// MasterKey grants unrestricted access. Empty disables the master principal.
	MasterKey string `koanf:"master_key"`

	// ToolPath and ToolMethod designate the tool invocation endpoint. Only that
	// endpoint accepts a body token and gets payload scope checks.
	ToolPath   string `koanf:"tool_path"`
	ToolMethod string `koanf:"tool_method"`

	APIKeyHeader string `koanf:"api_key_header"`

	// BodyTokenField is a dot separated path into the JSON-RPC body
	BodyTokenField string `koanf:"body_token_field"`

	// ResourceParam is the parameter naming the resource a tool call targets
	ResourceParam string `koanf:"resource_param"`

	AllowedOperations []string `koanf:"allowed_operations"`

	// MaxBodyBytes bounds how much of a tool request body is buffered for inspection
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// UpstreamConfig points at the tool server admitted requests are forwarded to
type UpstreamConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`  // "debug", "info", "warn", "error"
	Format string `koanf:"format"` // "json" (default) or "text"
}

// MetricsConfig holds Prometheus metrics server configuration
type MetricsConfig struct {
	// Enabled indicates whether the metrics server should be started
	Enabled bool `koanf:"enabled"`

	// Port is the port for the metrics HTTP server
	Port int `koanf:"port"`
}

// LoadConfig loads configuration from file, environment variables, and defaults.
// Priority: Environment variables > Config file > Defaults. An empty configPath
// skips the file.
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Load environment variables with prefix
	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal into Config struct with DecodeHook for duration strings
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envKeyMapper maps MCP_VAULT_ variables to koanf keys
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)

	switch s {
	case "master_key":
		return "auth.master_key"
	case "encryption_key":
		return "encryption.passphrase"
	case "data_dir":
		return "storage.data_dir"
	default:
		// Step 1: Convert double underscore "__" into a temporary placeholder
		s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
		// Step 2: Convert single "_" into "."
		s = strings.ReplaceAll(s, "_", ".")
		// Step 3: Convert placeholder back into literal "_"
		s = strings.ReplaceAll(s, "%UNDERSCORE%", "_")
		return s
	}
}

// defaultConfig returns a Config struct with default configuration values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Auth: AuthConfig{
			ToolPath:       "/mcp",
			ToolMethod:     http.MethodPost,
			APIKeyHeader:   "X-API-Key",
			BodyTokenField: "params._meta.apiKey",
			ResourceParam:  "connectionName",
			MaxBodyBytes:   4 << 20,
		},
		Upstream: UpstreamConfig{
			URL:     "http://localhost:3002",
			Timeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9091,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir is required")
	}

	if !strings.HasPrefix(c.Auth.ToolPath, "/") {
		return fmt.Errorf("auth.tool_path must start with '/', got: %s", c.Auth.ToolPath)
	}
	c.Auth.ToolMethod = strings.ToUpper(c.Auth.ToolMethod)
	if c.Auth.ToolMethod == "" {
		return fmt.Errorf("auth.tool_method is required")
	}
	if strings.TrimSpace(c.Auth.APIKeyHeader) == "" {
		return fmt.Errorf("auth.api_key_header is required")
	}
	if len(c.Auth.AllowedOperations) == 0 {
		c.Auth.AllowedOperations = append([]string(nil), DefaultAllowedOperations...)
	}
	if c.Auth.MaxBodyBytes <= 0 {
		return fmt.Errorf("auth.max_body_bytes must be positive, got: %d", c.Auth.MaxBodyBytes)
	}

	if c.Auth.MasterKey != "" && c.Auth.MasterKey == c.Encryption.Passphrase {
		return fmt.Errorf("auth.master_key must differ from encryption.passphrase")
	}

	if c.Upstream.URL != "" {
		u, err := url.Parse(c.Upstream.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream.url must be an absolute URL, got: %s", c.Upstream.URL)
		}
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got: %d", c.Metrics.Port)
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
		return fmt.Errorf("metrics.port must differ from server.port")
	}

	return nil
}

func (c *Config) validateLogging() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if strings.ToLower(c.Logging.Level) == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be either 'json' or 'text', got: %s", c.Logging.Format)
	}
	return nil
}

// SecretsDBPath returns the secret store database file
func (c *Config) SecretsDBPath() string {
	return filepath.Join(c.Storage.DataDir, SecretsDBFile)
}

// CredentialsDBPath returns the credential store database file
func (c *Config) CredentialsDBPath() string {
	return filepath.Join(c.Storage.DataDir, CredentialsDBFile)
}
