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

	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/encryption"
	"github.com/wso2/api-platform/gateway/mcp-vault/pkg/rotation"
)

type generatedKey struct {
	Key    string `json:"key" yaml:"key"`
	Length int    `json:"length" yaml:"length"`
}

func (c *cli) generateKeyCmd() *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Generate a random base64 key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if length < encryption.MinGeneratedKeyLength || length > encryption.MaxGeneratedKeyLength {
				return fmt.Errorf("key length must be between %d and %d bytes",
					encryption.MinGeneratedKeyLength, encryption.MaxGeneratedKeyLength)
			}
			key, err := c.svc.Cipher.GenerateKey(length)
			if err != nil {
				return err
			}
			return c.render(cmd, generatedKey{Key: key, Length: length})
		},
	}
	cmd.Flags().IntVarP(&length, "length", "l", encryption.DefaultGeneratedKeyLength, "key length in bytes")
	return cmd
}

func (c *cli) rotateKeyCmd() *cobra.Command {
	var newKey string

	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Re-encrypt every secret under a new passphrase",
		Long: `Decrypts every secret with the configured passphrase and re-encrypts it
with --new-key. Restart the server with the new passphrase afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := c.svc.Rotation.RotateKey(cmd.Context(), newKey)
			if err != nil {
				return err
			}
			return c.finish(cmd, result)
		},
	}
	cmd.Flags().StringVar(&newKey, "new-key", "", "the new encryption passphrase")
	_ = cmd.MarkFlagRequired("new-key")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Encrypt secrets still stored as plaintext",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := c.svc.Rotation.MigrateUnencrypted(cmd.Context())
			if err != nil {
				return err
			}
			return c.finish(cmd, result)
		},
	}
}

// finish renders the summary and fails the command when any item failed
func (c *cli) finish(cmd *cobra.Command, result *rotation.Result) error {
	if err := c.render(cmd, result.ToResponse()); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d secrets failed", result.Failed, result.Processed)
	}
	return nil
}
