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
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/cmdb"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/database"
	_ "github.com/GoogleCloudPlatform/federated-table-providers/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/federated-table-providers/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/federated-table-providers/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/logging"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/mux"
)

var (
	configFile string
	engines    []string

	// Request routing flags
	catalog string
	engine  string

	v      = viper.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "ftp",
	Short: "Query AWS inventory and relational databases as federated tables",
	Long: `ftp serves AWS resource inventories (CloudFront distributions, ELB target
groups) and relational database tables through one table interface. Requests are
routed to an engine either explicitly with --engine or through the connection
string of a configured catalog.`,
	SilenceUsage:      true,
	PersistentPreRunE: initFlagsAndConfig,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
}

// initFlagsAndConfig loads the configuration file, FTP_* environment
// variables and bound flags, then builds the logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// enabledEngines returns the engines to build: the --engines flag when
// given, otherwise cmdb plus every engine that has its own connection
// section or is named by a catalog.
func enabledEngines(cfg *config.Config, requested []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if len(requested) > 0 {
		for _, id := range requested {
			add(id)
		}
	} else {
		add(cmdb.EngineID)
		for id := range cfg.Engines {
			add(id)
		}
		for _, name := range cfg.CatalogNames() {
			if id, err := mux.EngineFromConnectionString(cfg.Catalogs[name]); err == nil {
				add(id)
			}
		}
	}
	sort.Strings(out)
	return out
}

func factoriesFor(ids []string) []mux.Factory {
	var factories []mux.Factory
	var dbEngines []string
	for _, id := range ids {
		if id == cmdb.EngineID {
			factories = append(factories, cmdb.Factory{})
			continue
		}
		dbEngines = append(dbEngines, id)
	}
	return append(factories, database.Factories(dbEngines...)...)
}

func setupMultiplexer(ctx context.Context) (*mux.Multiplexer, error) {
	ids := enabledEngines(cfg, engines)
	logger.Debug("building engines", zap.Strings("engines", ids))

	m, err := mux.NewBuilder(factoriesFor(ids)...).Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up engines: %w", err)
	}
	return m, nil
}

func newRequest() *connector.Request {
	return &connector.Request{
		Catalog:  catalog,
		Engine:   strings.ToLower(engine),
		PageSize: cfg.Reader.PageSize,
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML, JSON or TOML configuration file")
	flags.StringSliceVar(&engines, "engines", nil, "Engines to enable (default: cmdb plus every configured engine)")
	flags.StringVar(&catalog, "catalog", "", "Catalog whose connection string selects the engine")
	flags.StringVar(&engine, "engine", "", "Engine to route to, overrides --catalog")

	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Int("page-size", 0, "Records requested per remote page (default from config)")
	flags.Int("max-rows-per-block", 0, "Rows per emitted block (default from config)")
	flags.String("aws-region", "", "AWS region of the inventory tables")
	flags.String("aws-profile", "", "AWS shared config profile")
	flags.String("aws-endpoint", "", "Override the AWS service endpoint")

	for key, flag := range map[string]string{
		"log_level":                 "log-level",
		"reader.page_size":          "page-size",
		"reader.max_rows_per_block": "max-rows-per-block",
		"aws.region":                "aws-region",
		"aws.profile":               "aws-profile",
		"aws.endpoint":              "aws-endpoint",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(listSchemasCmd)
	rootCmd.AddCommand(listTablesCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(readCmd)
}
