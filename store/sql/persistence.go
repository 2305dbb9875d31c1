package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config selects the database behind the credential store and the callback
// ledger.
type Config struct {
	Driver      string        `koanf:"driver" mapstructure:"driver" yaml:"driver"`
	DSN         string        `koanf:"dsn" mapstructure:"dsn" yaml:"dsn"`
	Debug       bool          `koanf:"debug" mapstructure:"debug" yaml:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout" yaml:"ping_timeout"`
}

func (c Config) GetDebug() bool {
	return c.Debug
}

func (c Config) GetDriver() string {
	return normalizeDriver(c.Driver)
}

func (c Config) GetServer() string {
	return c.DSN
}

func (c Config) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c Config) GetOtelIdentifier() string {
	return "go-commerce"
}

// Open connects to the configured database. Close the returned client when
// done.
func Open(cfg Config) (*persistence.Client, error) {
	driver := normalizeDriver(cfg.Driver)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	var client *persistence.Client
	if driver == DriverPostgres {
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	} else {
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}

// Migrate registers the schema for the client's dialect and applies it.
func Migrate(ctx context.Context, client *persistence.Client, driver string) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	source, err := migrations.For(migrations.DialectForDriver(normalizeDriver(driver)))
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(source.FS)
	return client.Migrate(ctx)
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres
	case "sqlite", "sqlite3", "":
		return DriverSQLite
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}
