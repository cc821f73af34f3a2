// Package txn implements the Transaction Coordinator (spec.md §4.6): a
// per-job cache of open connections keyed by datasource, committed or rolled
// back together at the end of a job-flow run.
package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
)

// Coordinator is explicit, job-scoped state — never ambient/goroutine-local
// (spec.md §9 DESIGN NOTES: the source's original thread-local connection
// cache does not translate to Go, where there is no such thing as "the
// current thread"; a Coordinator is created per job run and threaded
// through explicitly instead).
type Coordinator struct {
	mu            sync.Mutex
	pool          *dialect.Pool
	conns         map[string]*dialect.Connection
	order         []string
	transactional bool
}

func NewCoordinator(pool *dialect.Pool, transactional bool) *Coordinator {
	return &Coordinator{
		pool:          pool,
		conns:         make(map[string]*dialect.Connection),
		transactional: transactional,
	}
}

// Connection returns the cached connection for drive, opening one (as a
// transaction if the coordinator is running transactionally, as a plain
// pooled connection otherwise) on first use within this job run. The order
// connections are first opened in is the order CommitAll/RollbackAll later
// act on them.
func (c *Coordinator) Connection(ctx context.Context, drive config.DbDrive) (*dialect.Connection, error) {
	key := drive.Key()

	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[key]; ok {
		return conn, nil
	}

	var conn *dialect.Connection
	var err error
	if c.transactional {
		conn, err = c.pool.Begin(ctx, drive)
	} else {
		conn, err = c.pool.Connect(ctx, drive)
	}
	if err != nil {
		return nil, fmt.Errorf("txn: open %s: %w", key, err)
	}
	c.conns[key] = conn
	c.order = append(c.order, key)
	return conn, nil
}

// CommitAll commits every open connection in insertion order — the order
// each datasource was first touched during the job run. On the first
// failure, every connection not yet committed is rolled back (best-effort);
// any connection committed earlier in the same call cannot be undone and is
// reported through logf rather than silently lost.
func (c *Coordinator) CommitAll(logf func(format string, args ...any)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if logf == nil {
		logf = func(string, ...any) {}
	}

	keys := c.order
	var firstErr error
	for i, key := range keys {
		if err := c.conns[key].Commit(); err != nil {
			firstErr = fmt.Errorf("txn: commit %s: %w", key, err)
			for _, remaining := range keys[i+1:] {
				if rbErr := c.conns[remaining].Rollback(); rbErr != nil {
					logf("txn: compensating rollback failed for %s: %v", remaining, rbErr)
				}
			}
			if i > 0 {
				logf("txn: %v committed before %s failed to commit; already-committed writes cannot be undone", keys[:i], key)
			}
			break
		}
	}
	return firstErr
}

// RollbackAll rolls back every open connection in insertion order,
// swallowing individual errors (other than reporting them through logf) so
// one failed rollback never stops the rest from being attempted.
func (c *Coordinator) RollbackAll(logf func(format string, args ...any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if logf == nil {
		logf = func(string, ...any) {}
	}
	for _, key := range c.order {
		if err := c.conns[key].Rollback(); err != nil {
			logf("txn: rollback %s: %v", key, err)
		}
	}
}
