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
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/database"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/mux"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Show linked-in engines, enabled engines and catalog routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeEngines(cmd.OutOrStdout(), cfg, enabledEngines(cfg, engines))
	},
}

func availableEngines() []string {
	ids := append([]string{cmdb.EngineID}, database.RegisteredEngines()...)
	sort.Strings(ids)
	return ids
}

// writeEngines does not connect to anything.
func writeEngines(out io.Writer, cfg *config.Config, enabled []string) error {
	isEnabled := map[string]bool{}
	for _, id := range enabled {
		isEnabled[id] = true
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENGINE\tENABLED")
	for _, id := range availableEngines() {
		fmt.Fprintf(w, "%s\t%t\n", id, isEnabled[id])
	}

	if names := cfg.CatalogNames(); len(names) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CATALOG\tENGINE")
		for _, name := range names {
			id, err := mux.EngineFromConnectionString(cfg.Catalogs[name])
			if err != nil {
				id = "invalid"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, id)
		}
	}
	return w.Flush()
}
