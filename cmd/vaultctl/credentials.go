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
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/models"
)

func (c *cli) credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Issue and manage API credentials",
	}
	cmd.AddCommand(
		c.credentialsCreateCmd(),
		c.credentialsListCmd(),
		c.credentialsRevokeCmd(),
		c.credentialsDeleteCmd(),
		c.credentialsUsageCmd(),
	)
	return cmd
}

func (c *cli) credentialsCreateCmd() *cobra.Command {
	var (
		req     models.CreateCredentialRequest
		expires string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a credential; the key is printed once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if expires != "" {
				at, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("--expires must be RFC 3339, e.g. 2026-01-02T15:04:05Z: %w", err)
				}
				req.ExpirationDate = &at
			}
			created, err := c.svc.Issuer.Create(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return c.render(cmd, created)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "credential name")
	cmd.Flags().StringVar(&req.OwnerID, "owner", "", "owner id")
	cmd.Flags().StringVar(&req.Kind, "kind", string(models.CredentialKindUser), "user or admin")
	cmd.Flags().StringVar(&req.Description, "description", "", "free-form description")
	cmd.Flags().StringVar(&expires, "expires", "", "expiration time (RFC 3339)")
	cmd.Flags().StringSliceVar(&req.AllowedResourceNames, "resource", nil, "allowed connection name; repeatable, empty allows all")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (c *cli) credentialsListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials without their keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				items []*models.CredentialResponse
				err   error
			)
			if owner != "" {
				items, err = c.svc.Issuer.ListForOwner(cmd.Context(), owner)
			} else {
				items, err = c.svc.Issuer.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			return c.render(cmd, items)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only list this owner's credentials")
	return cmd
}

func (c *cli) credentialsRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke ID",
		Short: "Revoke a credential, keeping its record and usage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revoked, err := c.svc.Issuer.Revoke(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.render(cmd, revoked)
		},
	}
}

func (c *cli) credentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a credential and its usage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.svc.Issuer.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.render(cmd, models.NewSuccessResponse(fmt.Sprintf("Credential '%s' deleted", args[0])))
		},
	}
}

func (c *cli) credentialsUsageCmd() *cobra.Command {
	var filter models.UsageFilter

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show recent usage by credential or owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if filter.CredentialID == "" && filter.OwnerID == "" {
				return errors.New("one of --id or --owner is required")
			}
			entries, err := c.svc.Issuer.UsageLogs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return c.render(cmd, entries)
		},
	}
	cmd.Flags().StringVar(&filter.CredentialID, "id", "", "credential id")
	cmd.Flags().StringVar(&filter.OwnerID, "owner", "", "owner id")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum entries (default 100, max 1000)")
	return cmd
}
