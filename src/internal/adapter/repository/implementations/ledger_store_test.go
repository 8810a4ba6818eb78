package implementations

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/api-sage/ledger-core/src/internal/commons"
	"github.com/lib/pq"
)

func TestMapStoreError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505", Constraint: "transactions_reference_number_key"}, want: commons.ErrDuplicateReference},
		{name: "serialization failure", err: &pq.Error{Code: "40001"}, want: commons.ErrVersionConflict},
		{name: "deadlock", err: fmt.Errorf("exec: %w", &pq.Error{Code: "40P01"}), want: commons.ErrVersionConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapStoreError("append transaction", tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	other := errors.New("connection refused")
	got := mapStoreError("get account", other)
	if !errors.Is(got, other) || errors.Is(got, commons.ErrVersionConflict) {
		t.Fatalf("expected raw error to be wrapped, got %v", got)
	}
}

func TestNullHelpers(t *testing.T) {
	if nullString(nil).Valid || nullTime(nil).Valid {
		t.Fatal("expected nil pointers to map to NULL")
	}

	target := "acc-1"
	if got := nullString(&target); !got.Valid || got.String != target {
		t.Fatalf("unexpected null string: %+v", got)
	}

	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if got := nullTime(&at); !got.Valid || !got.Time.Equal(at) {
		t.Fatalf("unexpected null time: %+v", got)
	}
}

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.SQL", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	files, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if want := []string{"001_a.SQL", "002_b.sql"}; !reflect.DeepEqual(files, want) {
		t.Fatalf("expected %v, got %v", want, files)
	}

	if _, err := migrationFiles(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadMigrationsChecksumsContent(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}
	write("001_a.sql", "CREATE TABLE a (id TEXT);")
	write("002_b.sql", "CREATE TABLE a (id TEXT);")

	migrations, err := loadMigrations(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(migrations) != 2 || migrations[0].version != "001_a.sql" {
		t.Fatalf("unexpected migrations: %+v", migrations)
	}
	if len(migrations[0].checksum) != 64 || migrations[0].checksum != migrations[1].checksum {
		t.Fatalf("expected equal sha256 checksums for equal content, got %q %q", migrations[0].checksum, migrations[1].checksum)
	}

	write("002_b.sql", "CREATE TABLE b (id TEXT);")
	changed, err := loadMigrations(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if changed[1].checksum == migrations[1].checksum {
		t.Fatal("expected checksum to follow file content")
	}
}
