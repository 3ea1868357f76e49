package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

var testFS = fstest.MapFS{
	"m/001_create_runs.up.sql":   {Data: []byte("CREATE TABLE runs (id TEXT PRIMARY KEY);")},
	"m/001_create_runs.down.sql": {Data: []byte("DROP TABLE runs;")},
	"m/002_add_digest.up.sql":    {Data: []byte("ALTER TABLE runs ADD COLUMN digest TEXT;")},
	"m/002_add_digest.down.sql":  {Data: []byte("ALTER TABLE runs DROP COLUMN digest;")},
	"m/README.md":                {Data: []byte("not a migration")},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFromFS(t *testing.T) {
	migrations, err := FromFS(testFS, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}

	byVersion := map[int]Migration{}
	for _, m := range migrations {
		byVersion[m.Version] = m
	}
	if byVersion[2].Name != "add digest" || byVersion[2].Down == "" {
		t.Errorf("unexpected migration %+v", byVersion[2])
	}

	broken := fstest.MapFS{"m/003_x.down.sql": {Data: []byte("SELECT 1;")}}
	if _, err := FromFS(broken, "m"); err == nil {
		t.Errorf("expected an error for a migration without an up file")
	}
}

func TestMigrator(t *testing.T) {
	ctx := context.Background()
	migrations, err := FromFS(testFS, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db := openDB(t)
	m := NewMigrator(db, migrations, nil)

	pending, err := m.Pending(ctx)
	if err != nil || len(pending) != 2 || pending[0].Version != 1 {
		t.Fatalf("unexpected pending migrations %+v, %v", pending, err)
	}

	if err := m.MigrateUp(ctx); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if v, _ := m.CurrentVersion(ctx); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
	if _, err := db.Exec(`INSERT INTO runs (id, digest) VALUES ('r1', 'abc')`); err != nil {
		t.Errorf("migrated schema is missing a column: %v", err)
	}

	// a second run is a no-op
	if err := m.MigrateUp(ctx); err != nil {
		t.Fatalf("repeated MigrateUp failed: %v", err)
	}

	if err := m.MigrateTo(ctx, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}
	if v, _ := m.CurrentVersion(ctx); v != 1 {
		t.Errorf("expected version 1 after rollback, got %d", v)
	}
	if _, err := db.Exec(`INSERT INTO runs (id, digest) VALUES ('r2', 'abc')`); err == nil {
		t.Errorf("digest column should be gone after rollback")
	}
}
