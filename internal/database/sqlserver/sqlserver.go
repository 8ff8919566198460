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
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/database"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// EngineID is the connection string scheme served by this dialect.
const EngineID = "mssql"

// sqlServerHandler struct implements database.DialectHandler for SQL Server.
type sqlServerHandler struct{}

var _ database.DialectHandler = (*sqlServerHandler)(nil)

type csqlDialer struct {
	dialer     *cloudsqlconn.Dialer
	connName   string
	usePrivate bool
}

// DialContext adheres to the mssql.Dialer interface.
func (c *csqlDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var opts []cloudsqlconn.DialOption
	if c.usePrivate {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}
	return c.dialer.Dial(ctx, c.connName, opts...)
}

func connectionURL(cfg config.DatabaseConfig, host string) string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   host,
	}
	q := url.Values{}
	q.Set("database", cfg.DBName)
	u.RawQuery = q.Encode()
	return u.String()
}

// CreateCloudSQLPool for SQL Server
func (h sqlServerHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, io.Closer, error) {
	if cfg.User == "" || cfg.DBName == "" {
		return nil, nil, fmt.Errorf("missing required CloudSQL connection parameter (user, db)")
	}

	// WithLazyRefresh() Option is used to perform refresh
	// when needed, rather than on a scheduled interval.
	dialer, err := cloudsqlconn.NewDialer(context.Background(), cloudsqlconn.WithLazyRefresh())
	if err != nil {
		return nil, nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}
	connector, err := mssql.NewConnector(connectionURL(cfg, "localhost:1433"))
	if err != nil {
		dialer.Close()
		return nil, nil, fmt.Errorf("mssql.NewConnector: %w", err)
	}
	connector.Dialer = &csqlDialer{
		dialer:     dialer,
		connName:   cfg.CloudSQLInstanceConnectionName,
		usePrivate: cfg.UsePrivateIP,
	}

	return sql.OpenDB(connector), dialer, nil
}

// CreateStandardPool creates a standard SQL Server connection pool
func (h sqlServerHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 1433 // Default SQL Server port
	}
	dbPool, err := sql.Open("sqlserver", connectionURL(cfg, fmt.Sprintf("%s:%d", cfg.Host, port)))
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard sqlserver): %w", err)
	}
	return dbPool, nil
}

// QuoteIdentifier wraps name in square brackets, doubling any closing bracket.
func (h sqlServerHandler) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (h sqlServerHandler) ListSchemasQuery() string {
	return `SELECT s.name FROM sys.schemas s
		WHERE s.name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
		AND s.name NOT LIKE 'db[_]%'
		ORDER BY s.name`
}

func (h sqlServerHandler) ListTablesQuery(schemaName string) (string, []any) {
	return `SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW') AND TABLE_CATALOG = DB_NAME() AND TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME`, []any{sql.Named("p1", schemaName)}
}

// ListColumnsQuery reads column descriptions from the MS_Description extended property.
func (h sqlServerHandler) ListColumnsQuery(table schema.TableName) (string, []any) {
	return `SELECT c.COLUMN_NAME, c.DATA_TYPE, CAST(ep.value AS NVARCHAR(4000))
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
			AND ep.minor_id = COLUMNPROPERTY(ep.major_id, c.COLUMN_NAME, 'ColumnId')
			AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`, []any{sql.Named("p1", table.Schema), sql.Named("p2", table.Table)}
}

func (h sqlServerHandler) KeyColumnsQuery(table schema.TableName) (string, []any) {
	return `SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON kcu.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
			AND kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION`, []any{sql.Named("p1", table.Schema), sql.Named("p2", table.Table)}
}

func (h sqlServerHandler) PageQuery(table schema.TableName, columns, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY",
		database.SelectList(h, columns), database.QualifiedName(h, table), database.SelectList(h, orderBy), offset, limit)
}

var types = database.TypeMap{
	"bigint":           schema.TypeInt64,
	"int":              schema.TypeInt64,
	"smallint":         schema.TypeInt64,
	"tinyint":          schema.TypeInt64,
	"bit":              schema.TypeBool,
	"decimal":          schema.TypeFloat64,
	"numeric":          schema.TypeFloat64,
	"money":            schema.TypeFloat64,
	"smallmoney":       schema.TypeFloat64,
	"float":            schema.TypeFloat64,
	"real":             schema.TypeFloat64,
	"date":             schema.TypeTimestamp,
	"datetime":         schema.TypeTimestamp,
	"datetime2":        schema.TypeTimestamp,
	"smalldatetime":    schema.TypeTimestamp,
	"datetimeoffset":   schema.TypeTimestamp,
	"binary":           schema.TypeBinary,
	"varbinary":        schema.TypeBinary,
	"image":            schema.TypeBinary,
	"rowversion":       schema.TypeBinary,
	"uniqueidentifier": schema.TypeBinary,
}

func (h sqlServerHandler) MapType(dataType string) schema.Type {
	return types.Lookup(dataType)
}

var unorderable = database.TypeSet{
	"text": true, "ntext": true, "image": true, "xml": true,
	"geography": true, "geometry": true,
}

func (h sqlServerHandler) Orderable(dataType string) bool {
	return !unorderable.Has(dataType)
}

func init() {
	database.RegisterDialectHandler(EngineID, sqlServerHandler{})
}
