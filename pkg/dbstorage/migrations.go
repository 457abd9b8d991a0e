package dbstorage

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

//go:embed migrations
var embeddedMigrations embed.FS

// runMigrations applies every migrations/<dialect>/*.up.sql file not yet
// recorded in schema_migrations, in lexical order, one transaction each.
func runMigrations(ctx context.Context, log *zap.Logger, db *sql.DB, dialect string) error {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if err != nil {
		return errors.Wrapf(err, "read embedded migrations %s", dir)
	}
	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP)`); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}
	selectQuery := "SELECT 1 FROM schema_migrations WHERE version = ?"
	insertQuery := "INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"
	if dialect == dialectPostgres {
		selectQuery = "SELECT 1 FROM schema_migrations WHERE version = $1"
		insertQuery = "INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)"
	}

	for _, name := range ups {
		version := strings.TrimSuffix(name, ".up.sql")
		var applied int
		err := db.QueryRowContext(ctx, selectQuery, version).Scan(&applied)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(err, "check migration %s", version)
		}
		data, err := embeddedMigrations.ReadFile(path.Join(dir, name))
		if err != nil {
			return errors.Wrapf(err, "read migration %s", version)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrapf(err, "begin migration %s", version)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "execute migration %s", version)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "record migration %s", version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %s", version)
		}
		log.Info("migration applied", zap.String("dialect", dialect), zap.String("version", version))
	}
	return nil
}
