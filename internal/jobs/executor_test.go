package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
	"github.com/user/relaygate/internal/orchestrator"
	"github.com/user/relaygate/internal/security"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}

type upperScript struct{}

func (upperScript) ScriptType() string { return "upper" }

func (upperScript) Execute(_ context.Context, source string, bindings map[string]any) (any, error) {
	if v, ok := bindings[source]; ok {
		return fmt.Sprintf("%v!", v), nil
	}
	return nil, fmt.Errorf("binding %q not found", source)
}

type failingScript struct{}

func (failingScript) ScriptType() string { return "fail" }

func (failingScript) Execute(context.Context, string, map[string]any) (any, error) {
	return nil, fmt.Errorf("boom")
}

func setupExecutor(t *testing.T) (*Executor, *dialect.Pool) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "jobs.db")

	dbCfg := &config.DbConfig{SQLite: map[string]config.HostSpec{"local": {DSN: dsn}}}
	pool := dialect.NewPool(dbCfg)
	t.Cleanup(func() { pool.Close() })

	conn, err := pool.Connect(context.Background(), config.DbDrive{Drive: config.SQLite, Host: "local"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "CREATE TABLE accounts (id INTEGER PRIMARY KEY, name TEXT, balance INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "INSERT INTO accounts (name, balance) VALUES (?, ?)", "alice", 100); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reg := config.NewForTesting(dir)
	endpoint := &config.EndpointDef{
		TableName: "accounts",
		DbDrive:   config.DbDrive{Drive: config.SQLite, Host: "local"},
		Field:     []string{"id", "name", "balance"},
		Pk:        "id",
		ConditionSchema: map[string]config.ConditionEntry{
			"name": {Fields: []string{"name"}, Operator: "="},
		},
		ParamsMapping: []config.ParamMapping{
			{Field: "id", DataType: config.TypeInt},
			{Field: "name", DataType: config.TypeString},
			{Field: "balance", DataType: config.TypeInt},
		},
	}
	reg.Seed(map[string]*config.EndpointDef{"getAccount": endpoint}, nil, nil, nil)

	orch := orchestrator.New(reg, pool, security.NewLimiter(), testLogger{})
	exec := New(reg, orch, pool, testLogger{})
	return exec, pool
}

func TestExecutorRunsAPIStepThenScriptStep(t *testing.T) {
	exec, _ := setupExecutor(t)

	job := &config.JobDef{
		Jobs: []config.JobStep{
			{Type: config.StepAPI, ApiKey: "getAccount", Operation: "list"},
			{Type: config.StepScript, ScriptType: "upper", ScriptContent: "step_0_api"},
		},
	}
	exec.registry.Seed(nil, map[string]*config.JobDef{"lookupAndGreet": job}, nil, nil)
	exec.RegisterScript(upperScript{})

	sp := config.StandardParams{Query: map[string]any{"name": "alice"}}
	result, err := exec.Run(context.Background(), "lookupAndGreet", sp)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(result.Steps))
	}
	if !result.Steps[0].Success || !result.Steps[1].Success {
		t.Fatalf("expected both steps to succeed: %+v", result.Steps)
	}
}

func TestExecutorRollsBackAllOnStepFailure(t *testing.T) {
	exec, pool := setupExecutor(t)

	job := &config.JobDef{
		Jobs: []config.JobStep{
			{Type: config.StepAPI, ApiKey: "getAccount", Operation: "modify"},
			{Type: config.StepScript, ScriptType: "fail", ScriptContent: "anything"},
		},
	}
	exec.registry.Seed(nil, map[string]*config.JobDef{"updateThenFail": job}, nil, nil)
	exec.RegisterScript(failingScript{})

	sp := config.StandardParams{Body: map[string]any{"id": float64(1), "name": "alice", "balance": float64(999)}}
	result, err := exec.Run(context.Background(), "updateThenFail", sp)
	if err == nil {
		t.Fatal("expected error from failing script step")
	}
	if result.Success {
		t.Fatal("expected job result to report failure")
	}

	conn, connErr := pool.Connect(context.Background(), config.DbDrive{Drive: config.SQLite, Host: "local"})
	if connErr != nil {
		t.Fatalf("connect: %v", connErr)
	}
	row := conn.QueryRowContext(context.Background(), "SELECT balance FROM accounts WHERE id = 1")
	var balance int
	if err := row.Scan(&balance); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if balance != 100 {
		t.Errorf("expected rollback to discard the update, got balance=%d", balance)
	}
}

func TestExecutorUnknownJobFails(t *testing.T) {
	exec, _ := setupExecutor(t)
	_, err := exec.Run(context.Background(), "nope", config.StandardParams{})
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
}
