package sqlserver

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/federated-table-providers/internal/config"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/connector"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/database"
	"github.com/GoogleCloudPlatform/federated-table-providers/internal/schema"
)

func TestSQLServerQuoteIdentifier(t *testing.T) {
	handler := sqlServerHandler{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Simple name", "orders", "[orders]"},
		{"Name with spaces", "order lines", "[order lines]"},
		{"Closing bracket", "a]b", "[a]]b]"},
		{"Keyword", "user", "[user]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.QuoteIdentifier(tt.in); got != tt.want {
				t.Errorf("QuoteIdentifier() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSQLServerPageQuery(t *testing.T) {
	got := sqlServerHandler{}.PageQuery(schema.NewTableName("dbo", "orders"), []string{"id", "total"}, []string{"region", "id"}, 101, 200)
	want := "SELECT [id], [total] FROM [dbo].[orders] ORDER BY [region], [id] OFFSET 200 ROWS FETCH NEXT 101 ROWS ONLY"
	if got != want {
		t.Errorf("PageQuery() = %q, want %q", got, want)
	}
}

func TestSQLServerKeyColumns(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	db := database.NewWithPool(mockDb, sqlServerHandler{}, config.DatabaseConfig{Dialect: EngineID}, zaptest.NewLogger(t))
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'")).
		WithArgs(sql.Named("p1", "dbo"), sql.Named("p2", "orders")).
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("region").AddRow("id"))

	keys, err := db.KeyColumns(context.Background(), schema.NewTableName("dbo", "orders"))
	if err != nil {
		t.Fatalf("KeyColumns() unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "region" || keys[1] != "id" {
		t.Errorf("KeyColumns() = %v, want [region id]", keys)
	}
	if handler := (sqlServerHandler{}); handler.Orderable("ntext") || !handler.Orderable("nvarchar") {
		t.Errorf("Orderable() should reject ntext and accept nvarchar")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSQLServerMapType(t *testing.T) {
	handler := sqlServerHandler{}
	tests := map[string]schema.Type{
		"int":              schema.TypeInt64,
		"bit":              schema.TypeBool,
		"money":            schema.TypeFloat64,
		"datetime2":        schema.TypeTimestamp,
		"varbinary":        schema.TypeBinary,
		"uniqueidentifier": schema.TypeBinary,
		"nvarchar":         schema.TypeString,
	}
	for in, want := range tests {
		if got := handler.MapType(in); got != want {
			t.Errorf("MapType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSQLServerGetTable(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	db := database.NewWithPool(mockDb, sqlServerHandler{}, config.DatabaseConfig{Dialect: EngineID}, zaptest.NewLogger(t))
	defer db.Close()

	rows := sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "description"}).
		AddRow("id", "bigint", "Order id").
		AddRow("placed_at", "datetime2", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.COLUMN_NAME, c.DATA_TYPE, CAST(ep.value AS NVARCHAR(4000))")).
		WithArgs(sql.Named("p1", "dbo"), sql.Named("p2", "orders")).
		WillReturnRows(rows)

	d, err := db.GetTable(context.Background(), &connector.Request{Table: schema.NewTableName("dbo", "orders")})
	if err != nil {
		t.Fatalf("GetTable() unexpected error: %v", err)
	}
	placed, _ := d.Column("placed_at")
	if placed.Type != schema.TypeTimestamp {
		t.Errorf("placed_at type = %v, want timestamp", placed.Type)
	}
	if d.Metadata()["id"] != "Order id" {
		t.Errorf("Metadata() = %v", d.Metadata())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSQLServerIsRegistered(t *testing.T) {
	if _, err := database.GetDialectHandler(EngineID); err != nil {
		t.Errorf("GetDialectHandler(%q) unexpected error: %v", EngineID, err)
	}
}
