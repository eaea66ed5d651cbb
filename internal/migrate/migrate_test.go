package migrate_test

import (
	"testing"

	"talentops/internal/db"
	"talentops/internal/migrate"
)

func TestMigrateRecordsLedgerAndIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if count == 0 {
		t.Fatal("no migrations recorded")
	}
	var name, appliedAt string
	if err := conn.QueryRow(`SELECT name, applied_at FROM schema_migrations WHERE version=1`).Scan(&name, &appliedAt); err != nil {
		t.Fatalf("read version 1: %v", err)
	}
	if name != "init" || appliedAt == "" {
		t.Fatalf("ledger row = %s / %s", name, appliedAt)
	}

	// A second run applies nothing and adds no rows.
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	var again int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&again); err != nil {
		t.Fatalf("reread ledger: %v", err)
	}
	if again != count {
		t.Fatalf("ledger grew on re-run: %d -> %d", count, again)
	}

	// The schema is actually in place.
	if _, err := conn.Exec(`INSERT INTO departments(id,department_name,created_at) VALUES ('d1','Finance','2025-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("schema missing after migrate: %v", err)
	}
}
