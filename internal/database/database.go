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
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/block"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/logging"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/mux"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

var _ mux.Handler = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
	// dialer is set for Cloud SQL pools and closed with the pool.
	dialer io.Closer
	logger *zap.Logger
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string
	DataType string
	Comment  string
}

// DialectHandler hides the SQL differences between engines. Query builders
// return the statement together with its arguments in the placeholder style
// of the engine's driver.
type DialectHandler interface {
	// CreateCloudSQLPool also returns the dialer behind the pool. It must be
	// closed after the pool.
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, io.Closer, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	ListSchemasQuery() string
	// ListTablesQuery selects (schema, table) pairs of one schema.
	ListTablesQuery(schemaName string) (string, []any)
	// ListColumnsQuery selects (name, data type, comment) in ordinal order.
	// The comment may be NULL.
	ListColumnsQuery(table schema.TableName) (string, []any)
	// KeyColumnsQuery selects the primary key column names in key order.
	KeyColumnsQuery(table schema.TableName) (string, []any)
	// PageQuery selects columns of table sorted by orderBy, skipping offset
	// rows and returning at most limit rows. orderBy is never empty.
	PageQuery(table schema.TableName, columns, orderBy []string, limit, offset int) string
	MapType(dataType string) schema.Type
	// Orderable reports whether ORDER BY accepts a column of dataType.
	Orderable(dataType string) bool
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

// RegisterDialectHandler makes a dialect available under its engine id.
// Registering the same engine twice panics.
func RegisterDialectHandler(engine string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[engine]; exists {
		panic(fmt.Sprintf("dialect handler for %q registered twice", engine))
	}
	dialectHandlers[engine] = handler
}

func GetDialectHandler(engine string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[engine]
	if !ok {
		return nil, &connector.ErrUnsupportedEngine{Engine: engine, Supported: registeredEngines()}
	}
	return handler, nil
}

// RegisteredEngines returns the engine ids of all linked-in dialects.
func RegisteredEngines() []string {
	mu.RLock()
	defer mu.RUnlock()
	return registeredEngines()
}

func registeredEngines() []string {
	engines := make([]string, 0, len(dialectHandlers))
	for engine := range dialectHandlers {
		engines = append(engines, engine)
	}
	sort.Strings(engines)
	return engines
}

// New opens a pool for cfg.Dialect and checks it with a ping. Cloud SQL
// is used when an instance connection name is configured.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var (
		pool   *sql.DB
		dialer io.Closer
	)
	if cfg.UsesCloudSQL() {
		pool, dialer, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	db := NewWithPool(pool, handler, cfg, logger)
	db.dialer = dialer
	if err := pool.PingContext(ctx); err != nil {
		logging.LogCloserError(logger, db, "close pool after failed ping")
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	logger.Info("connected to database",
		zap.String("dialect", cfg.Dialect),
		zap.String("database", cfg.DBName),
		zap.Bool("cloudsql", cfg.UsesCloudSQL()),
	)
	return db, nil
}

// NewWithPool wraps an already opened pool.
func NewWithPool(pool *sql.DB, handler DialectHandler, cfg config.DatabaseConfig, logger *zap.Logger) *DB {
	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
		logger:  logger,
	}
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

// Close closes the pool, then the Cloud SQL dialer if there is one.
func (db *DB) Close() error {
	var errs []error
	if db.Pool != nil {
		errs = append(errs, db.Pool.Close())
	} else {
		db.logger.Warn("attempted to close a nil database connection pool")
	}
	if db.dialer != nil {
		errs = append(errs, db.dialer.Close())
		db.dialer = nil
	}
	return errors.Join(errs...)
}

func (db *DB) ListSchemas(ctx context.Context, _ *connector.Request) ([]string, error) {
	rows, err := db.Pool.QueryContext(ctx, db.Handler.ListSchemasQuery())
	if err != nil {
		return nil, fmt.Errorf("error querying schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning schema name: %w", err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema rows: %w", err)
	}
	return schemas, nil
}

// ListTables lists the tables of req.Schema, or of every schema when it is empty.
func (db *DB) ListTables(ctx context.Context, req *connector.Request) ([]schema.TableName, error) {
	schemas := []string{req.Schema}
	if req.Schema == "" {
		var err error
		if schemas, err = db.ListSchemas(ctx, req); err != nil {
			return nil, err
		}
	}

	var tables []schema.TableName
	for _, s := range schemas {
		query, args := db.Handler.ListTablesQuery(s)
		found, err := db.queryTables(ctx, query, args)
		if err != nil {
			return nil, fmt.Errorf("error listing tables of schema %s: %w", s, err)
		}
		tables = append(tables, found...)
	}
	return tables, nil
}

func (db *DB) queryTables(ctx context.Context, query string, args []any) ([]schema.TableName, error) {
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.TableName
	for rows.Next() {
		var name schema.TableName
		if err := rows.Scan(&name.Schema, &name.Table); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

func (db *DB) ListColumns(ctx context.Context, table schema.TableName) ([]ColumnInfo, error) {
	query, args := db.Handler.ListColumnsQuery(table)
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			col     ColumnInfo
			comment sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.DataType, &comment); err != nil {
			return nil, fmt.Errorf("error scanning column details: %w", err)
		}
		col.Comment = comment.String
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// GetTable describes req.Table from the catalog views. Column comments
// become column metadata.
func (db *DB) GetTable(ctx context.Context, req *connector.Request) (*schema.Descriptor, error) {
	if req.Table.Schema == "" || req.Table.Table == "" {
		return nil, fmt.Errorf("table name %q must be schema qualified: %w", req.Table, connector.ErrInvalidRequest)
	}

	columns, err := db.ListColumns(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Table, connector.ErrTableNotFound)
	}

	b := schema.NewBuilder()
	for _, col := range columns {
		b.AddField(col.Name, db.Handler.MapType(col.DataType))
		if col.Comment != "" {
			b.AddMetadata(col.Name, col.Comment)
		}
	}
	d, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("error describing %s: %w", req.Table, err)
	}
	return d, nil
}

// KeyColumns returns the primary key columns of table in key order.
func (db *DB) KeyColumns(ctx context.Context, table schema.TableName) ([]string, error) {
	query, args := db.Handler.KeyColumnsQuery(table)
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying key columns for table %s: %w", table, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning key column: %w", err)
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating key column rows: %w", err)
	}
	return keys, nil
}

// sortOrder picks the columns that give table a total row order: the
// primary key, or every orderable column when there is none. Rows that
// agree on all orderable columns may still swap places between pages.
func (db *DB) sortOrder(ctx context.Context, table schema.TableName) ([]string, error) {
	keys, err := db.KeyColumns(ctx, table)
	if err != nil || len(keys) > 0 {
		return keys, err
	}

	columns, err := db.ListColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	var orderBy []string
	for _, col := range columns {
		if db.Handler.Orderable(col.DataType) {
			orderBy = append(orderBy, col.Name)
		}
	}
	return orderBy, nil
}

// ReadTable pages through req.Table with OFFSET queries sorted by the
// primary key. A table with no orderable column is read with one unpaged
// query. Rows inserted or deleted while reading can shift page boundaries.
func (db *DB) ReadTable(ctx context.Context, req *connector.Request, spiller *block.Spiller, checker connector.StatusChecker) error {
	columns := spiller.Descriptor().ColumnNames()
	logger := logging.AnnotateLogger(db.logger, "ReadTable", req)

	orderBy, err := db.sortOrder(ctx, req.Table)
	if err != nil {
		return err
	}
	if len(orderBy) == 0 {
		logger.Warn("no orderable columns, reading without pages")
	}

	pager := &offsetPager{
		db:       db,
		table:    req.Table,
		columns:  columns,
		orderBy:  orderBy,
		pageSize: req.EffectivePageSize(),
	}

	stats, err := connector.FetchAll[[]any](ctx, logger, pager, checker, func(values []any) error {
		return spiller.WriteRows(func(w block.RowWriter) (int, error) {
			for i, col := range columns {
				w.OfferValue(col, values[i])
			}
			return w.Result().Count(), nil
		})
	})
	if err != nil {
		return err
	}

	logger.Info("table read", zap.Int("pages", stats.Pages), zap.Int("rows", stats.Records), zap.Bool("cancelled", stats.Cancelled))
	return nil
}

// offsetPager encodes the next offset as the page token. Without orderBy
// the whole table is one page.
type offsetPager struct {
	db       *DB
	table    schema.TableName
	columns  []string
	orderBy  []string
	pageSize int
}

func (p *offsetPager) query(offset int) string {
	if len(p.orderBy) == 0 {
		return fmt.Sprintf("SELECT %s FROM %s", SelectList(p.db.Handler, p.columns), QualifiedName(p.db.Handler, p.table))
	}
	// one extra row tells whether another page exists
	return p.db.Handler.PageQuery(p.table, p.columns, p.orderBy, p.pageSize+1, offset)
}

func (p *offsetPager) ListPage(ctx context.Context, token string) (connector.Page[[]any], error) {
	offset := 0
	if token != "" {
		var err error
		if offset, err = strconv.Atoi(token); err != nil {
			return connector.Page[[]any]{}, fmt.Errorf("invalid page token %q: %w", token, connector.ErrInvariantViolation)
		}
	}

	rows, err := p.db.Pool.QueryContext(ctx, p.query(offset))
	if err != nil {
		return connector.Page[[]any]{}, fmt.Errorf("error querying %s: %w", p.table, err)
	}
	defer rows.Close()

	var items [][]any
	for rows.Next() {
		values := make([]any, len(p.columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return connector.Page[[]any]{}, fmt.Errorf("error scanning row of %s: %w", p.table, err)
		}
		items = append(items, values)
	}
	if err := rows.Err(); err != nil {
		return connector.Page[[]any]{}, fmt.Errorf("error iterating rows of %s: %w", p.table, err)
	}

	page := connector.Page[[]any]{Items: items}
	if len(p.orderBy) > 0 && len(items) > p.pageSize {
		page.Items = items[:p.pageSize]
		page.NextToken = strconv.Itoa(offset + p.pageSize)
	}
	return page, nil
}
