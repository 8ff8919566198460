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
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/logging"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

var describeCmd = &cobra.Command{
	Use:     "describe <schema.table>",
	Short:   "Print the columns of a table",
	Example: `./ftp describe cloudfront.distributions --engine cmdb`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	table, err := schema.ParseTableName(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m, err := setupMultiplexer(ctx)
	if err != nil {
		return err
	}
	defer logging.LogCloserError(logger, m, "failed to close engines")

	req := newRequest()
	req.Table = table
	d, err := m.GetTable(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to describe %s: %w", table, err)
	}
	return writeDescriptor(cmd.OutOrStdout(), d)
}

// writeDescriptor prints one line per column: name, type and description.
func writeDescriptor(out io.Writer, d *schema.Descriptor) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tDESCRIPTION")
	md := d.Metadata()
	for _, col := range d.Columns() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", col.Name, columnType(col), md[col.Name])
	}
	return w.Flush()
}

func columnType(col schema.Column) string {
	switch col.Kind {
	case schema.KindList:
		return "list<" + col.Type.String() + ">"
	case schema.KindListOfStruct:
		return "list<struct<" + strings.Join(col.Fields, ", ") + ">>"
	default:
		return col.Type.String()
	}
}
