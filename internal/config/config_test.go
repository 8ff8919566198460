package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ftp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Dialect)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 100, cfg.Reader.PageSize)
	assert.Equal(t, 4096, cfg.Reader.MaxRowsPerBlock)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotNil(t, cfg.Engines)
	assert.NotNil(t, cfg.Catalogs)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
aws:
  region: eu-west-1
  profile: inventory
reader:
  page_size: 25
engines:
  mssql:
    host: sql.internal
    port: 1433
    user: reader
    dbname: sales
catalogs:
  sales: mssql://sql.internal:1433/sales
`)
	t.Setenv("FTP_AWS_REGION", "ap-south-1")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ap-south-1", cfg.AWS.Region)
	assert.Equal(t, "inventory", cfg.AWS.Profile)
	assert.Equal(t, 25, cfg.Reader.PageSize)
	assert.Equal(t, "mssql://sql.internal:1433/sales", cfg.Catalogs["sales"])

	mssql := cfg.DatabaseFor("mssql")
	assert.Equal(t, "mssql", mssql.Dialect)
	assert.Equal(t, "sql.internal", mssql.Host)
	assert.Equal(t, 1433, mssql.Port)

	mysql := cfg.DatabaseFor("mysql")
	assert.Equal(t, "mysql", mysql.Dialect)
	assert.Equal(t, "localhost", mysql.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := GetConfig()
	require.NoError(t, cfg.Validate())

	cfg.Reader.PageSize = -1
	cfg.Catalogs["crm"] = "oracle-host:1521"
	cfg.Engines["mysql"] = DatabaseConfig{Dialect: "postgres"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reader.page_size")
	assert.Contains(t, err.Error(), `catalog "crm"`)
	assert.Contains(t, err.Error(), "engines.mysql")
}

func TestUsesCloudSQL(t *testing.T) {
	assert.False(t, DatabaseConfig{Host: "localhost"}.UsesCloudSQL())
	assert.True(t, DatabaseConfig{CloudSQLInstanceConnectionName: "p:r:i"}.UsesCloudSQL())
}
