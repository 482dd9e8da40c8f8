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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/config"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/logger"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/vault"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// cli holds the state shared by every subcommand of one invocation
type cli struct {
	configPath string
	output     string

	log *slog.Logger
	svc *vault.Services
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "vaultctl",
		Short: "Operate the MCP vault data directory",
		Long: `vaultctl works directly on the vault's SQLite stores using the same
configuration as the server. Run it on the vault host.

Environment variables with the MCP_VAULT_ prefix override the config file,
for example MCP_VAULT_ENCRYPTION_KEY and MCP_VAULT_DATA_DIR.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to configuration file (TOML)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", outputJSON, "output format: json or yaml")

	root.AddCommand(
		c.generateKeyCmd(),
		c.rotateKeyCmd(),
		c.migrateCmd(),
		c.secretsCmd(),
		c.credentialsCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	c.output = strings.ToLower(c.output)
	if c.output != outputJSON && c.output != outputYAML {
		return fmt.Errorf("unsupported output format %q: use json or yaml", c.output)
	}

	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.log = logger.NewLogger(logger.Config{
		Level:  cfg.Logging.Level,
		Format: "text",
		Output: cmd.ErrOrStderr(),
	})

	svc, err := vault.New(cmd.Context(), cfg, c.log)
	if err != nil {
		return err
	}
	c.svc = svc
	return nil
}

// render writes v to the command's stdout in the selected format
func (c *cli) render(cmd *cobra.Command, v any) error {
	return render(cmd.OutOrStdout(), c.output, v)
}

func render(w io.Writer, format string, v any) error {
	if format == outputYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
