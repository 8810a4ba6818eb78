package implementations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/api-sage/ledger-core/src/internal/logger"
	_ "github.com/lib/pq"
)

// migrationLockKey serialises migrations when the server and the interest
// job start against the same database.
const migrationLockKey int64 = 0x6c6564676572

var errMigrationDrift = errors.New("applied migration was modified")

type migration struct {
	version    string
	statements string
	checksum   string
}

// RunMigrations applies every *.sql file in migrationsDir in name order, each
// in its own transaction. Applied files are recorded with a checksum and an
// applied file whose content changed stops the run.
func RunMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	migrations, err := loadMigrations(migrationsDir)
	if err != nil {
		return err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			logger.Error("release migration lock failed", err, nil)
		}
	}()

	if err := ensureSchemaMigrationsTable(ctx, conn); err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		checksum, found, err := appliedChecksum(ctx, conn, m.version)
		if err != nil {
			return err
		}
		if found {
			if checksum != "" && checksum != m.checksum {
				return fmt.Errorf("%w: %s", errMigrationDrift, m.version)
			}
			continue
		}

		if err := applyMigration(ctx, conn, m); err != nil {
			return err
		}
		applied++
		logger.Info("migration applied", logger.Fields{
			"version":  m.version,
			"checksum": m.checksum[:12],
		})
	}

	logger.Info("migrations complete", logger.Fields{
		"available": len(migrations),
		"applied":   applied,
	})
	return nil
}

func applyMigration(ctx context.Context, conn *sql.Conn, m migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for migration %q: %w", m.version, err)
	}

	if _, err := tx.ExecContext(ctx, m.statements); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %q: %w", m.version, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, checksum) VALUES ($1, $2)`, m.version, m.checksum); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %q: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", m.version, err)
	}
	return nil
}

func ensureSchemaMigrationsTable(ctx context.Context, conn *sql.Conn) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT NOT NULL DEFAULT ''`

	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func appliedChecksum(ctx context.Context, conn *sql.Conn, version string) (string, bool, error) {
	var checksum string
	err := conn.QueryRowContext(ctx, `SELECT checksum FROM schema_migrations WHERE version = $1`, version).Scan(&checksum)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("check migration %q status: %w", version, err)
	default:
		return checksum, true, nil
	}
}

func loadMigrations(migrationsDir string) ([]migration, error) {
	files, err := migrationFiles(migrationsDir)
	if err != nil {
		return nil, err
	}

	migrations := make([]migration, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(filepath.Join(migrationsDir, file))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", file, err)
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, migration{
			version:    file,
			statements: string(content),
			checksum:   hex.EncodeToString(sum[:]),
		})
	}
	return migrations, nil
}

func migrationFiles(migrationsDir string) ([]string, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory %q: %w", migrationsDir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}
