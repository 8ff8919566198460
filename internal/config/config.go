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
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. FTP_AWS_REGION.
const EnvPrefix = "FTP"

// Config holds all configuration for the application
type Config struct {
	// Database is the connection used for an engine without its own entry
	// in Engines.
	Database DatabaseConfig `mapstructure:"database"`
	// Engines holds per-engine connection settings keyed by engine id.
	Engines map[string]DatabaseConfig `mapstructure:"engines"`
	// Catalogs maps a catalog name to a connection string such as
	// "mssql://host:1433/sales". The engine is derived from the scheme.
	Catalogs map[string]string `mapstructure:"catalogs"`
	AWS      AWSConfig         `mapstructure:"aws"`
	Reader   ReaderConfig      `mapstructure:"reader"`
	LogLevel string            `mapstructure:"log_level"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"dbname"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"use_private_ip"`
}

// UsesCloudSQL reports whether connections go through the Cloud SQL connector.
func (c DatabaseConfig) UsesCloudSQL() bool {
	return c.CloudSQLInstanceConnectionName != ""
}

// AWSConfig selects the account and region the inventory tables read from.
type AWSConfig struct {
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
	// Endpoint overrides the service endpoint, for local stacks.
	Endpoint string `mapstructure:"endpoint"`
}

// ReaderConfig tunes how tables are read.
type ReaderConfig struct {
	PageSize          int     `mapstructure:"page_size"`
	MaxRowsPerBlock   int     `mapstructure:"max_rows_per_block"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxRetries        int     `mapstructure:"max_retries"`
}

// GetConfig returns a default configuration. Values are overridden by the
// config file, FTP_* environment variables and flags in root.go.
func GetConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Engines:  map[string]DatabaseConfig{},
		Catalogs: map[string]string{},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Reader: ReaderConfig{
			PageSize:          100,
			MaxRowsPerBlock:   4096,
			RequestsPerSecond: 10,
			MaxRetries:        3,
		},
		LogLevel: "info",
	}
}

// SetDefaults registers the defaults from GetConfig so that every key can
// also be overridden from the environment.
func SetDefaults(v *viper.Viper) {
	d := GetConfig()
	v.SetDefault("database.dialect", d.Database.Dialect)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.dbname", d.Database.DBName)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.cloudsql_instance_connection_name", d.Database.CloudSQLInstanceConnectionName)
	v.SetDefault("database.use_private_ip", d.Database.UsePrivateIP)
	v.SetDefault("aws.region", d.AWS.Region)
	v.SetDefault("aws.profile", d.AWS.Profile)
	v.SetDefault("aws.endpoint", d.AWS.Endpoint)
	v.SetDefault("reader.page_size", d.Reader.PageSize)
	v.SetDefault("reader.max_rows_per_block", d.Reader.MaxRowsPerBlock)
	v.SetDefault("reader.requests_per_second", d.Reader.RequestsPerSecond)
	v.SetDefault("reader.max_retries", d.Reader.MaxRetries)
	v.SetDefault("log_level", d.LogLevel)
}

// Load reads the configuration from path (if not empty), FTP_* environment
// variables and whatever flags were bound to v, in increasing precedence.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if cfg.Engines == nil {
		cfg.Engines = map[string]DatabaseConfig{}
	}
	if cfg.Catalogs == nil {
		cfg.Catalogs = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabaseFor returns the connection settings for engine. An entry in
// Engines wins over the shared Database section.
func (c *Config) DatabaseFor(engine string) DatabaseConfig {
	db, ok := c.Engines[engine]
	if !ok {
		db = c.Database
	}
	db.Dialect = engine
	return db
}

// CatalogNames returns the configured catalogs in sorted order.
func (c *Config) CatalogNames() []string {
	names := make([]string, 0, len(c.Catalogs))
	for name := range c.Catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Reader.PageSize < 0 {
		errs = append(errs, fmt.Errorf("reader.page_size must not be negative, got %d", c.Reader.PageSize))
	}
	if c.Reader.MaxRowsPerBlock < 0 {
		errs = append(errs, fmt.Errorf("reader.max_rows_per_block must not be negative, got %d", c.Reader.MaxRowsPerBlock))
	}
	if c.Reader.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("reader.requests_per_second must not be negative, got %v", c.Reader.RequestsPerSecond))
	}
	if c.Reader.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("reader.max_retries must not be negative, got %d", c.Reader.MaxRetries))
	}

	for _, name := range c.CatalogNames() {
		conn := c.Catalogs[name]
		if !strings.Contains(conn, "://") {
			errs = append(errs, fmt.Errorf("catalog %q: connection string %q has no engine scheme", name, conn))
		}
	}

	for engine, db := range c.Engines {
		if db.Dialect != "" && db.Dialect != engine {
			errs = append(errs, fmt.Errorf("engines.%s: dialect %q does not match the engine id", engine, db.Dialect))
		}
	}

	return errors.Join(errs...)
}
