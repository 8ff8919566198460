package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/block"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/database"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

// Helper to create a mock DB for testing
func newMockPostgresDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	db := database.NewWithPool(mockDb, postgresHandler{}, config.DatabaseConfig{Dialect: EngineID}, zaptest.NewLogger(t))
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	handler := postgresHandler{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple name", "mytable", `"mytable"`},
		{"Name with spaces", "my table", `"my table"`},
		{"Name with quotes", `my"table`, `"my""table"`},
		{"Keyword", "user", `"user"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.QuoteIdentifier(tt.in); got != tt.want {
				t.Errorf("QuoteIdentifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresListTables(t *testing.T) {
	db, mock := newMockPostgresDB(t)
	expectedQuery := regexp.QuoteMeta("SELECT table_schema, table_name FROM information_schema.tables")

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_schema", "table_name"}).
			AddRow("public", "users").
			AddRow("public", "products")
		mock.ExpectQuery(expectedQuery).WithArgs("public").WillReturnRows(rows)

		tables, err := db.ListTables(context.Background(), &connector.Request{Schema: "public"})
		if err != nil {
			t.Fatalf("ListTables() unexpected error: %v", err)
		}
		if len(tables) != 2 || tables[0].Table != "users" || tables[1].Table != "products" {
			t.Errorf("ListTables() got %v, want [public.users public.products]", tables)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		dbError := errors.New("connection failed")
		mock.ExpectQuery(expectedQuery).WithArgs("public").WillReturnError(dbError)

		_, err := db.ListTables(context.Background(), &connector.Request{Schema: "public"})
		if !errors.Is(err, dbError) {
			t.Errorf("ListTables() got error %v, want error containing %v", err, dbError)
		}
	})

	t.Run("Scan Error", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"table_schema", "table_name"}).
			AddRow("public", "users").
			AddRow("public", nil)
		mock.ExpectQuery(expectedQuery).WithArgs("public").WillReturnRows(rows)

		if _, err := db.ListTables(context.Background(), &connector.Request{Schema: "public"}); err == nil {
			t.Fatalf("ListTables() expected scan error, got nil")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresListSchemas(t *testing.T) {
	db, mock := newMockPostgresDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT schema_name FROM information_schema.schemata")).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("public").AddRow("billing"))

	schemas, err := db.ListSchemas(context.Background(), &connector.Request{})
	if err != nil {
		t.Fatalf("ListSchemas() unexpected error: %v", err)
	}
	if len(schemas) != 2 || schemas[0] != "public" || schemas[1] != "billing" {
		t.Errorf("ListSchemas() = %v", schemas)
	}
}

func TestPostgresPageQuery(t *testing.T) {
	got := postgresHandler{}.PageQuery(schema.NewTableName("public", "users"), []string{"id", "e-mail"}, []string{"id"}, 11, 30)
	want := `SELECT "id", "e-mail" FROM "public"."users" ORDER BY "id" LIMIT 11 OFFSET 30`
	if got != want {
		t.Errorf("PageQuery() = %q, want %q", got, want)
	}
}

func TestPostgresOrderable(t *testing.T) {
	handler := postgresHandler{}
	tests := map[string]bool{
		"integer":           true,
		"character varying": true,
		"jsonb":             true,
		"json":              false,
		"xml":               false,
		"point":             false,
	}
	for in, want := range tests {
		if got := handler.Orderable(in); got != want {
			t.Errorf("Orderable(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPostgresMapType(t *testing.T) {
	handler := postgresHandler{}
	tests := map[string]schema.Type{
		"integer":                     schema.TypeInt64,
		"boolean":                     schema.TypeBool,
		"double precision":            schema.TypeFloat64,
		"numeric":                     schema.TypeFloat64,
		"timestamp without time zone": schema.TypeTimestamp,
		"date":                        schema.TypeTimestamp,
		"bytea":                       schema.TypeBinary,
		"character varying":           schema.TypeString,
		"jsonb":                       schema.TypeString,
	}
	for in, want := range tests {
		if got := handler.MapType(in); got != want {
			t.Errorf("MapType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPostgresReadTable(t *testing.T) {
	db, mock := newMockPostgresDB(t)

	rows := sqlmock.NewRows([]string{"id", "active"}).
		AddRow(int64(7), true).
		AddRow(int64(8), false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT kcu.column_name")).WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.column_name, c.data_type")).WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "col_description"}).
			AddRow("id", "integer", nil).
			AddRow("active", "boolean", nil).
			AddRow("profile", "json", nil))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "active" FROM "public"."users" ORDER BY "id", "active" LIMIT 101 OFFSET 0`)).WillReturnRows(rows)

	d := schema.NewBuilder().AddField("id", schema.TypeInt64).AddField("active", schema.TypeBool).MustBuild()
	collector := &block.Collector{}
	defer collector.Release()
	spiller := block.NewSpiller(d, collector)

	req := &connector.Request{Table: schema.NewTableName("public", "users")}
	if err := db.ReadTable(context.Background(), req, spiller, connector.AlwaysActive); err != nil {
		t.Fatalf("ReadTable() unexpected error: %v", err)
	}
	if err := spiller.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if stats := spiller.Stats(); stats.Rows != 2 || stats.Matched != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
