package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"strings"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/go-sql-driver/mysql"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/database"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

const EngineID = "mysql"

type mysqlHandler struct{}

var _ database.DialectHandler = (*mysqlHandler)(nil)

func (h mysqlHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, io.Closer, error) {
	instance := cfg.CloudSQLInstanceConnectionName
	if cfg.User == "" || cfg.Password == "" || cfg.DBName == "" || instance == "" {
		return nil, nil, fmt.Errorf("missing required CloudSQL connection parameter (user, pass, db, instance)")
	}

	d, err := cloudsqlconn.NewDialer(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("cloudsqlconn.NewDialer: %w", err)
	}

	var opts []cloudsqlconn.DialOption
	if cfg.UsePrivateIP {
		opts = append(opts, cloudsqlconn.WithPrivateIP())
	}

	network := fmt.Sprintf("cloudsql-%s", instance)
	mysql.RegisterDialContext(network,
		func(ctx context.Context, addr string) (net.Conn, error) {
			conn, dialErr := d.Dial(ctx, instance, opts...)
			if dialErr != nil {
				return nil, fmt.Errorf("cloud sql dial %s: %w", instance, dialErr)
			}
			return conn, nil
		})

	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  network,
		Addr:                 instance,
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		mysql.DeregisterDialContext(network)
		d.Close()
		return nil, nil, fmt.Errorf("sql.Open failed for CloudSQL MySQL: %w", err)
	}
	return dbPool, database.CloserFunc(func() error {
		mysql.DeregisterDialContext(network)
		return d.Close()
	}), nil
}

func (h mysqlHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mysqlCfg := mysql.Config{
		User:                 cfg.User,
		Passwd:               cfg.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Host, port),
		DBName:               cfg.DBName,
		AllowNativePasswords: true,
		ParseTime:            true,
	}

	dbPool, err := sql.Open("mysql", mysqlCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open (standard mysql): %w", err)
	}
	return dbPool, nil
}

func (h mysqlHandler) QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, "`", "``")
	return fmt.Sprintf("`%s`", name)
}

func (h mysqlHandler) ListSchemasQuery() string {
	return "SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys') ORDER BY SCHEMA_NAME"
}

func (h mysqlHandler) ListTablesQuery(schemaName string) (string, []any) {
	return "SELECT TABLE_SCHEMA, TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE IN ('BASE TABLE', 'VIEW') ORDER BY TABLE_NAME",
		[]any{schemaName}
}

func (h mysqlHandler) ListColumnsQuery(table schema.TableName) (string, []any) {
	return "SELECT COLUMN_NAME, DATA_TYPE, COLUMN_COMMENT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
		[]any{table.Schema, table.Table}
}

func (h mysqlHandler) KeyColumnsQuery(table schema.TableName) (string, []any) {
	return "SELECT COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY ORDINAL_POSITION",
		[]any{table.Schema, table.Table}
}

func (h mysqlHandler) PageQuery(table schema.TableName, columns, orderBy []string, limit, offset int) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
		database.SelectList(h, columns), database.QualifiedName(h, table), database.SelectList(h, orderBy), limit, offset)
}

var types = database.TypeMap{
	"tinyint":    schema.TypeInt64,
	"smallint":   schema.TypeInt64,
	"mediumint":  schema.TypeInt64,
	"int":        schema.TypeInt64,
	"bigint":     schema.TypeInt64,
	"year":       schema.TypeInt64,
	"decimal":    schema.TypeFloat64,
	"float":      schema.TypeFloat64,
	"double":     schema.TypeFloat64,
	"date":       schema.TypeTimestamp,
	"datetime":   schema.TypeTimestamp,
	"bit":        schema.TypeBinary,
	"binary":     schema.TypeBinary,
	"varbinary":  schema.TypeBinary,
	"tinyblob":   schema.TypeBinary,
	"blob":       schema.TypeBinary,
	"mediumblob": schema.TypeBinary,
	"longblob":   schema.TypeBinary,
}

func (h mysqlHandler) MapType(dataType string) schema.Type {
	return types.Lookup(dataType)
}

var unorderable = database.TypeSet{
	"json": true, "geometry": true, "point": true, "linestring": true, "polygon": true,
	"multipoint": true, "multilinestring": true, "multipolygon": true, "geometrycollection": true,
}

func (h mysqlHandler) Orderable(dataType string) bool {
	return !unorderable.Has(dataType)
}

func init() {
	database.RegisterDialectHandler(EngineID, mysqlHandler{})
}
