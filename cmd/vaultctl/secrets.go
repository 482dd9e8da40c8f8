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

	"github.com/spf13/cobra"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

func (c *cli) secretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage stored connection secrets",
	}
	cmd.AddCommand(
		c.secretsListCmd(),
		c.secretsGetCmd(),
		c.secretsSetCmd(),
		c.secretsDeleteCmd(),
	)
	return cmd
}

func (c *cli) secretsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List secrets without their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := c.svc.Secrets.GetAllRaw(cmd.Context())
			if err != nil {
				return err
			}
			items := make([]models.SecretSummary, len(all))
			for i, secret := range all {
				items[i] = secret.Summary()
			}
			return c.render(cmd, items)
		},
	}
}

func (c *cli) secretsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a secret with its decrypted value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := c.svc.Secrets.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.render(cmd, secret)
		},
	}
}

func (c *cli) secretsSetCmd() *cobra.Command {
	var (
		value       string
		kind        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create or replace a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := &models.Secret{Name: args[0], Value: value, Kind: kind}
			if cmd.Flags().Changed("description") {
				secret.Description = &description
			}
			if err := c.svc.Secrets.Save(cmd.Context(), secret); err != nil {
				return err
			}
			return c.render(cmd, models.NewSuccessResponse(fmt.Sprintf("Secret '%s' saved", args[0])))
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "secret value, stored encrypted")
	cmd.Flags().StringVar(&kind, "kind", models.DefaultSecretKind, "secret kind")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func (c *cli) secretsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.svc.Secrets.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.render(cmd, models.NewSuccessResponse(fmt.Sprintf("Secret '%s' deleted", args[0])))
		},
	}
}
