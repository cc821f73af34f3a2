package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/user/relaygate"
	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
	"github.com/user/relaygate/internal/jobs"
	"github.com/user/relaygate/internal/orchestrator"
	"github.com/user/relaygate/internal/security"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}

func setupServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "http.db")

	dbCfg := &config.DbConfig{SQLite: map[string]config.HostSpec{"local": {DSN: dsn}}}
	pool := dialect.NewPool(dbCfg)
	t.Cleanup(func() { pool.Close() })

	conn, err := pool.Connect(context.Background(), config.DbDrive{Drive: config.SQLite, Host: "local"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "INSERT INTO widgets (name) VALUES (?)", "gizmo"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reg := config.NewForTesting(dir)
	endpoint := &config.EndpointDef{
		TableName: "widgets",
		DbDrive:   config.DbDrive{Drive: config.SQLite, Host: "local"},
		Field:     []string{"id", "name"},
		Pk:        "id",
	}
	reg.Seed(map[string]*config.EndpointDef{"listWidgets": endpoint}, nil, nil, nil)

	orch := orchestrator.New(reg, pool, security.NewLimiter(), testLogger{})
	jobExec := jobs.New(reg, orch, pool, testLogger{})
	return New(orch, jobExec, testLogger{})
}

func TestHandleInvokeReturnsRows(t *testing.T) {
	server := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/invoke/listWidgets", nil)
	rr := httptest.NewRecorder()
	server.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var result relaygate.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestHandleInvokeUnknownEndpointReturnsBadRequest(t *testing.T) {
	server := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/invoke/nope", nil)
	rr := httptest.NewRecorder()
	server.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	server := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	server.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
