/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/logging"
)

var listSchemasCmd = &cobra.Command{
	Use:     "list-schemas",
	Short:   "List the schemas served by an engine",
	Example: `./ftp list-schemas --engine cmdb`,
	Args:    cobra.NoArgs,
	RunE:    runListSchemas,
}

var listTablesCmd = &cobra.Command{
	Use:     "list-tables",
	Short:   "List the tables served by an engine",
	Example: `./ftp list-tables --catalog sales --schema dbo`,
	Args:    cobra.NoArgs,
	RunE:    runListTables,
}

func runListSchemas(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, err := setupMultiplexer(ctx)
	if err != nil {
		return err
	}
	defer logging.LogCloserError(logger, m, "failed to close engines")

	schemas, err := m.ListSchemas(ctx, newRequest())
	if err != nil {
		return fmt.Errorf("failed to list schemas: %w", err)
	}
	for _, s := range schemas {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}

func runListTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, err := setupMultiplexer(ctx)
	if err != nil {
		return err
	}
	defer logging.LogCloserError(logger, m, "failed to close engines")

	req := newRequest()
	req.Schema, _ = cmd.Flags().GetString("schema")

	tables, err := m.ListTables(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	for _, t := range tables {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	return nil
}

func init() {
	listTablesCmd.Flags().String("schema", "", "Only list tables of this schema")
}
