package txn

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
)

func testPool(t *testing.T) (*dialect.Pool, config.DbDrive) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "coord.db")
	cfg := &config.DbConfig{
		SQLite: map[string]config.HostSpec{
			"local": {DSN: dsn},
		},
	}
	pool := dialect.NewPool(cfg)
	t.Cleanup(func() { pool.Close() })
	return pool, config.DbDrive{Drive: config.SQLite, Host: "local"}
}

func TestCoordinatorCommitsSameConnectionOnReuse(t *testing.T) {
	pool, drive := testPool(t)
	ctx := context.Background()
	coord := NewCoordinator(pool, true)

	conn1, err := coord.Connection(ctx, drive)
	if err != nil {
		t.Fatalf("Connection: %v", err)
	}
	if _, err := conn1.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	conn2, err := coord.Connection(ctx, drive)
	if err != nil {
		t.Fatalf("Connection (reuse): %v", err)
	}
	if conn1 != conn2 {
		t.Fatal("expected the same cached connection for the same datasource")
	}

	if _, err := conn2.ExecContext(ctx, "INSERT INTO t (v) VALUES (?)", "hello"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := coord.CommitAll(nil); err != nil {
		t.Fatalf("CommitAll: %v", err)
	}

	verify, err := pool.Connect(ctx, drive)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	var count int
	if err := verify.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestCoordinatorRollbackAllDiscardsWrites(t *testing.T) {
	pool, drive := testPool(t)
	ctx := context.Background()
	coord := NewCoordinator(pool, true)

	conn, err := coord.Connection(ctx, drive)
	if err != nil {
		t.Fatalf("Connection: %v", err)
	}
	if _, err := conn.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	coord.RollbackAll(nil)

	verify, err := pool.Connect(ctx, drive)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	var name string
	err = verify.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='t'").Scan(&name)
	if err == nil {
		t.Fatal("expected table creation to have been rolled back")
	}
}
