// Package migrations resolves the embedded credential and callback ledger
// schema for each supported SQL dialect.
package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	commerce "github.com/goliatone/go-commerce"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// Steps lists the schema migrations in apply order. Every dialect ships an
// up and a down file for each step.
var Steps = []string{
	"00001_commerce_credentials",
	"00002_commerce_callback_deliveries",
}

// Source is the migration directory of one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// For resolves the source of dialect from the embedded schema, or from root
// when one is given.
func For(dialect string, root ...fs.FS) (Source, error) {
	fsys := commerce.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		fsys = root[0]
	}

	dialect = normalizeDialect(dialect)
	path := rootPath
	switch dialect {
	case DialectPostgres:
	case DialectSQLite:
		path = rootPath + "/sqlite"
	default:
		return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	sub, err := fs.Sub(fsys, path)
	if err != nil {
		return Source{}, fmt.Errorf("migrations: resolve %s filesystem: %w", dialect, err)
	}
	source := Source{Dialect: dialect, Path: path, FS: sub}
	if err := source.Check(); err != nil {
		return Source{}, err
	}
	return source, nil
}

// All returns the postgres and sqlite sources.
func All(root ...fs.FS) ([]Source, error) {
	out := make([]Source, 0, 2)
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		source, err := For(dialect, root...)
		if err != nil {
			return nil, err
		}
		out = append(out, source)
	}
	return out, nil
}

// Check reports the first missing or empty migration file.
func (s Source) Check() error {
	if s.FS == nil {
		return fmt.Errorf("migrations: %s filesystem is nil", s.Dialect)
	}
	for _, step := range Steps {
		for _, suffix := range []string{".up.sql", ".down.sql"} {
			name := step + suffix
			content, err := fs.ReadFile(s.FS, name)
			if err != nil {
				return fmt.Errorf("migrations: %s %s/%s: %w", s.Dialect, s.Path, name, err)
			}
			if strings.TrimSpace(string(content)) == "" {
				return fmt.Errorf("migrations: %s %s/%s is empty", s.Dialect, s.Path, name)
			}
		}
	}
	return nil
}

// Up returns the up file names in apply order.
func (s Source) Up() []string {
	out := make([]string, 0, len(Steps))
	for _, step := range Steps {
		out = append(out, step+".up.sql")
	}
	return out
}

// Down returns the down file names in rollback order.
func (s Source) Down() []string {
	out := make([]string, 0, len(Steps))
	for i := len(Steps) - 1; i >= 0; i-- {
		out = append(out, Steps[i]+".down.sql")
	}
	return out
}

// DialectForDriver maps a database/sql driver name to its schema dialect.
func DialectForDriver(driver string) string {
	return normalizeDialect(driver)
}

func normalizeDialect(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
