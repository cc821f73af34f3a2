package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
	"github.com/user/relaygate/internal/security"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}

func setupOrchestrator(t *testing.T) (*Orchestrator, *config.Registry, *dialect.Pool) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "orch.db")

	dbCfg := &config.DbConfig{SQLite: map[string]config.HostSpec{"local": {DSN: dsn}}}
	pool := dialect.NewPool(dbCfg)
	t.Cleanup(func() { pool.Close() })

	conn, err := pool.Connect(context.Background(), config.DbDrive{Drive: config.SQLite, Host: "local"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT, status TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "INSERT INTO widgets (name, status) VALUES (?, ?)", "gizmo", "active"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reg := config.NewForTesting(dir)

	endpoint := &config.EndpointDef{
		TableName: "widgets",
		DbDrive:   config.DbDrive{Drive: config.SQLite, Host: "local"},
		Field:     []string{"id", "name", "status"},
		Pk:        "id",
		ConditionSchema: map[string]config.ConditionEntry{
			"status": {Fields: []string{"status"}, Operator: "="},
		},
	}
	reg.Seed(map[string]*config.EndpointDef{"listWidgets": endpoint}, nil, nil, nil)

	return New(reg, pool, security.NewLimiter(), testLogger{}), reg, pool
}

func TestOrchestratorInvokeList(t *testing.T) {
	o, _, _ := setupOrchestrator(t)
	sp := config.StandardParams{Query: map[string]any{"status": "active"}}

	result, err := o.Invoke(context.Background(), "listWidgets", OpList, PageArgs{}, sp, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	rows, ok := result.Data.([]map[string]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected 1 row, got %v", result.Data)
	}
	if rows[0]["name"] != "gizmo" {
		t.Errorf("unexpected row: %v", rows[0])
	}
}

func TestOrchestratorInvokeUnknownEndpoint(t *testing.T) {
	o, _, _ := setupOrchestrator(t)
	_, err := o.Invoke(context.Background(), "nope", OpList, PageArgs{}, config.StandardParams{}, nil)
	if err == nil {
		t.Fatal("expected error for unknown endpoint")
	}
}
