// Package dialect isolates the per-database-engine differences the rest of
// the engine must not care about: placeholder syntax, pagination clause
// shape, and connection pool lifecycle (spec.md §4.2 "Driver Adapter").
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/user/relaygate/internal/config"
)

// driverNames maps a dialect to the database/sql driver registered for it.
var driverNames = map[config.Dialect]string{
	config.MySQL:  "mysql",
	config.MSSQL:  "sqlserver",
	config.SQLite: "sqlite",
}

// Placeholder returns the parameter placeholder for index (1-based, the
// caller's running paramIndex). MySQL and SQLite use positional "?"; MSSQL
// uses named, zero-based "@pN" placeholders (spec.md §4.2 — this module
// intentionally uses a consistent zero-based index rather than mixing
// 0-based and 1-based forms, resolving the "off-by-one at the pagination
// boundary" note in DESIGN NOTES).
func Placeholder(d config.Dialect, index int) string {
	if d == config.MSSQL {
		return "@p" + strconv.Itoa(index-1)
	}
	return "?"
}

// QuoteIdent quotes a single identifier for d.
func QuoteIdent(d config.Dialect, name string) string {
	switch d {
	case config.MySQL, config.SQLite:
		return "`" + name + "`"
	case config.MSSQL:
		return "[" + name + "]"
	default:
		return name
	}
}

// PageClause returns the trailing clause that applies a shallow LIMIT/OFFSET
// style page to an already fully-formed SELECT (no window functions).
func PageClause(d config.Dialect, offsetPlaceholder, limitPlaceholder string) string {
	switch d {
	case config.MSSQL:
		return fmt.Sprintf("OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", offsetPlaceholder, limitPlaceholder)
	default:
		return fmt.Sprintf("LIMIT %s OFFSET %s", limitPlaceholder, offsetPlaceholder)
	}
}

// Connection wraps either a pooled *sql.DB or an open *sql.Tx so callers in
// internal/sqlbuilder/internal/orchestrator can execute without caring which
// one backs a given job step (spec.md §4.6 Transaction Coordinator).
type Connection struct {
	Dialect config.Dialect
	db      *sql.DB
	tx      *sql.Tx
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.tx != nil {
		return c.tx.ExecContext(ctx, query, args...)
	}
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.tx != nil {
		return c.tx.QueryContext(ctx, query, args...)
	}
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if c.tx != nil {
		return c.tx.QueryRowContext(ctx, query, args...)
	}
	return c.db.QueryRowContext(ctx, query, args...)
}

// InTx reports whether this Connection is backed by an open transaction.
func (c *Connection) InTx() bool { return c.tx != nil }

// Pool lazily opens and caches one *sql.DB per datasource key
// (dialect|host), applying the configured pool policy on first open.
type Pool struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB
	cfg *config.DbConfig
}

func NewPool(cfg *config.DbConfig) *Pool {
	return &Pool{dbs: make(map[string]*sql.DB), cfg: cfg}
}

// hostSpecFor resolves the HostSpec registered for (dialect, host).
func (p *Pool) hostSpecFor(d config.Dialect, host string) (config.HostSpec, bool) {
	var table map[string]config.HostSpec
	switch d {
	case config.MySQL:
		table = p.cfg.MySQL
	case config.MSSQL:
		table = p.cfg.MSSQL
	case config.SQLite:
		table = p.cfg.SQLite
	}
	spec, ok := table[host]
	return spec, ok
}

// Open returns the cached *sql.DB for drive, opening and configuring it on
// first use. Double-checked locking keeps the hot path lock-light: most
// calls only need the read under the mutex to find an existing entry.
func (p *Pool) Open(drive config.DbDrive) (*sql.DB, error) {
	key := drive.Key()

	p.mu.Lock()
	if db, ok := p.dbs[key]; ok {
		p.mu.Unlock()
		return db, nil
	}
	p.mu.Unlock()

	spec, ok := p.hostSpecFor(drive.Drive, drive.Host)
	if !ok {
		return nil, fmt.Errorf("dialect: no host spec registered for %s/%s", drive.Drive, drive.Host)
	}
	driverName, ok := driverNames[drive.Drive]
	if !ok {
		return nil, fmt.Errorf("dialect: unsupported dialect %q", drive.Drive)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.dbs[key]; ok {
		return db, nil
	}

	db, err := sql.Open(driverName, spec.DSN)
	if err != nil {
		return nil, fmt.Errorf("dialect: open %s: %w", key, err)
	}
	applyPoolPolicy(db, spec.Pool)
	p.dbs[key] = db
	return db, nil
}

func applyPoolPolicy(db *sql.DB, policy config.PoolPolicy) {
	if policy.Max > 0 {
		db.SetMaxOpenConns(policy.Max)
	}
	if policy.MinIdle > 0 {
		db.SetMaxIdleConns(policy.MinIdle)
	}
	if policy.IdleTimeoutMs > 0 {
		db.SetConnMaxIdleTime(time.Duration(policy.IdleTimeoutMs) * time.Millisecond)
	}
}

// Connect opens a plain (non-transactional) Connection against drive.
func (p *Pool) Connect(ctx context.Context, drive config.DbDrive) (*Connection, error) {
	db, err := p.Open(drive)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("dialect: ping %s: %w", drive.Key(), err)
	}
	return &Connection{Dialect: drive.Drive, db: db}, nil
}

// Begin opens a transaction-backed Connection against drive.
func (p *Pool) Begin(ctx context.Context, drive config.DbDrive) (*Connection, error) {
	db, err := p.Open(drive)
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dialect: begin %s: %w", drive.Key(), err)
	}
	return &Connection{Dialect: drive.Drive, db: db, tx: tx}, nil
}

// Commit commits the transaction backing c. No-op (returns nil) if c is not
// transaction-backed.
func (c *Connection) Commit() error {
	if c.tx == nil {
		return nil
	}
	return c.tx.Commit()
}

// Rollback rolls back the transaction backing c, swallowing
// sql.ErrTxDone so repeated/best-effort rollback calls are safe.
func (c *Connection) Rollback() error {
	if c.tx == nil {
		return nil
	}
	if err := c.tx.Rollback(); err != nil && !strings.Contains(err.Error(), "transaction has already been committed or rolled back") {
		return err
	}
	return nil
}

// Close closes the pool's underlying *sql.DB handles. Intended for process
// shutdown only — pooled connections are long-lived in normal operation.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, db := range p.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
