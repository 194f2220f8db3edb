package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

const schemaVersionKey = "schema_version"

type migration struct {
	version int
	name    string
	body    string
}

// Migrator brings the store schema up to the latest embedded version.
// The applied version lives in the metadata key/value table.
type Migrator struct {
	db      *sqlx.DB
	dialect string
	logger  *zap.Logger
}

// NewMigrator constructs a migrator for the given dialect ("sqlite" or "postgres").
func NewMigrator(db *sqlx.DB, dialect string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, dialect: dialect, logger: logger}
}

// Latest returns the highest embedded schema version.
func (m *Migrator) Latest() (int, error) {
	migrations, err := m.load()
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].version, nil
}

// Up applies every migration newer than the stored schema version.
func (m *Migrator) Up(ctx context.Context) error {
	const bootstrap = `CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`
	if _, err := m.db.ExecContext(ctx, bootstrap); err != nil {
		return fmt.Errorf("create metadata table: %w", err)
	}

	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	migrations, err := m.load()
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return err
		}
		m.logger.Info("schema migrated", zap.Int("version", mig.version), zap.String("migration", mig.name))
	}
	return nil
}

// Version returns the stored schema version, 0 when none was recorded.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var raw string
	err := m.db.GetContext(ctx, &raw, m.db.Rebind(`SELECT value FROM metadata WHERE key = ?`), schemaVersionKey)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return version, nil
}

func (m *Migrator) apply(ctx context.Context, mig migration) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", mig.name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range splitStatements(mig.body) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.name, err)
		}
	}

	const upsert = `INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err = tx.ExecContext(ctx, tx.Rebind(upsert), schemaVersionKey, strconv.Itoa(mig.version)); err != nil {
		return fmt.Errorf("record schema version %d: %w", mig.version, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mig.name, err)
	}
	return nil
}

func (m *Migrator) load() ([]migration, error) {
	dir := path.Join("migrations", m.dialect)
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", m.dialect, err)
	}

	migrations := make([]migration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		body, err := fs.ReadFile(migrationFiles, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, migration{version: version, name: name, body: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

func splitStatements(body string) []string {
	parts := strings.Split(body, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
