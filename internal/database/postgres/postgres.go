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
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/database"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

const EngineID = "postgres"

// postgresHandler struct implements database.DialectHandler for PostgreSQL.
type postgresHandler struct{}

var _ database.DialectHandler = (*postgresHandler)(nil)

// CreateCloudSQLPool connects through the Cloud SQL dialer with pgx.
func (h postgresHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, io.Closer, error) {
	if cfg.User == "" || cfg.DBName == "" {
		return nil, nil, fmt.Errorf("missing required CloudSQL connection parameter (user, db)")
	}

	dsn := fmt.Sprintf("user=%s password=%s database=%s", cfg.User, cfg.Password, cfg.DBName)
	pgxConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, nil, err
	}
	var opts []cloudsqlconn.Option
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(context.Background(), opts...)
	if err != nil {
		return nil, nil, err
	}
	instance := cfg.CloudSQLInstanceConnectionName
	pgxConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(ctx, instance)
	}
	dbURI := stdlib.RegisterConnConfig(pgxConfig)
	dbPool, err := sql.Open("pgx", dbURI)
	if err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}

	return dbPool, database.CloserFunc(func() error {
		stdlib.UnregisterConnConfig(dbURI)
		return d.Close()
	}), nil
}

// CreateStandardPool creates a standard PostgreSQL connection pool
func (h postgresHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode,
	)

	dbPool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return dbPool, nil
}

func (h postgresHandler) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (h postgresHandler) ListSchemasQuery() string {
	return `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name <> 'information_schema' AND schema_name NOT LIKE 'pg\_%'
		ORDER BY schema_name`
}

func (h postgresHandler) ListTablesQuery(schemaName string) (string, []any) {
	return `SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`, []any{schemaName}
}

func (h postgresHandler) ListColumnsQuery(table schema.TableName) (string, []any) {
	return `SELECT c.column_name, c.data_type,
			col_description(format('%I.%I', c.table_schema, c.table_name)::regclass::oid, c.ordinal_position)
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, []any{table.Schema, table.Table}
}

func (h postgresHandler) KeyColumnsQuery(table schema.TableName) (string, []any) {
	return `SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = tc.constraint_schema
			AND kcu.constraint_name = tc.constraint_name
			AND kcu.table_name = tc.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, []any{table.Schema, table.Table}
}

func (h postgresHandler) PageQuery(table schema.TableName, columns, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
		database.SelectList(h, columns), database.QualifiedName(h, table), database.SelectList(h, orderBy), limit, offset)
}

var types = database.TypeMap{
	"smallint":         schema.TypeInt64,
	"integer":          schema.TypeInt64,
	"bigint":           schema.TypeInt64,
	"boolean":          schema.TypeBool,
	"real":             schema.TypeFloat64,
	"double precision": schema.TypeFloat64,
	"numeric":          schema.TypeFloat64,
	"date":             schema.TypeTimestamp,
	"bytea":            schema.TypeBinary,
}

// MapType resolves information_schema data types; all timestamp variants
// map to TypeTimestamp.
func (h postgresHandler) MapType(dataType string) schema.Type {
	return types.Lookup(dataType)
}

// json, xml and the geometric types have no btree ordering.
var unorderable = database.TypeSet{
	"json": true, "xml": true,
	"point": true, "line": true, "lseg": true, "box": true,
	"path": true, "polygon": true, "circle": true,
}

func (h postgresHandler) Orderable(dataType string) bool {
	return !unorderable.Has(dataType)
}

func init() {
	database.RegisterDialectHandler(EngineID, postgresHandler{})
}
