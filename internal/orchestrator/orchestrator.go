// Package orchestrator implements the Request Orchestrator (spec.md §4.7):
// the single call path that wires registry lookup, auth, rate limiting,
// parameter resolution, SQL compilation, execution, and audit/slow-query
// logging together for one endpoint invocation.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/relaygate"
	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
	"github.com/user/relaygate/internal/logging"
	"github.com/user/relaygate/internal/metrics"
	"github.com/user/relaygate/internal/params"
	"github.com/user/relaygate/internal/security"
	"github.com/user/relaygate/internal/sqlbuilder"
)

// Operation names the SQL shape a caller wants compiled for one invocation.
type Operation string

const (
	OpList     Operation = "list"
	OpPage     Operation = "page"
	OpDeepPage Operation = "deepPage"
	OpModify   Operation = "modify"
)

// PageArgs carries the paging knobs for OpPage/OpDeepPage.
type PageArgs struct {
	Page     int
	PageSize int
	MaxTotal int
}

type Orchestrator struct {
	registry *config.Registry
	pool     *dialect.Pool
	limiter  *security.Limiter
	logger   relaygate.Logger
}

func New(registry *config.Registry, pool *dialect.Pool, limiter *security.Limiter, logger relaygate.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, pool: pool, limiter: limiter, logger: logger}
}

// Invoke runs one endpoint end to end. conn, if non-nil, is used instead of
// opening a fresh pooled connection — the job-flow executor passes its
// shared, transactional Coordinator-backed connection here so all of a
// job's API steps share one transaction (spec.md §4.8).
func (o *Orchestrator) Invoke(
	ctx context.Context,
	apiKey string,
	op Operation,
	page PageArgs,
	sp config.StandardParams,
	conn *dialect.Connection,
) (relaygate.Result, error) {
	start := time.Now()
	traceID := uuid.New().String()

	endpoint, ok := o.registry.GetSqlConfig(apiKey)
	if !ok {
		metrics.RequestsTotal.WithLabelValues(apiKey, "not_found").Inc()
		return relaygate.Fail("unknown endpoint: " + apiKey), fmt.Errorf("orchestrator: unknown endpoint %q", apiKey)
	}

	auth := o.registry.GetEffectiveAuth(endpoint.AuthConfig)

	if endpoint.RequireAuth {
		if err := security.VerifySignature(auth, sp.Merged(), time.Now()); err != nil {
			metrics.RequestsTotal.WithLabelValues(apiKey, "auth_failed").Inc()
			o.logger.Warn("signature verification failed", "apiKey", apiKey, "trace", traceID, "error", err)
			return relaygate.Fail("unauthorized"), err
		}
	}

	client := clientIdentity(sp)
	if o.limiter != nil {
		window := time.Duration(auth.RateLimitWindowOrDefault()) * time.Second
		minInterval := time.Duration(auth.IntervalMinOrDefault()) * time.Millisecond
		if err := o.limiter.Allow(apiKey, client, auth.RateLimitMaxOrDefault(), window, minInterval); err != nil {
			metrics.RequestsTotal.WithLabelValues(apiKey, "rate_limited").Inc()
			metrics.RateLimitedTotal.WithLabelValues(apiKey, err.Error()).Inc()
			return relaygate.Fail(err.Error()), err
		}
	}

	resolved, err := params.Resolve(endpoint.ParamsMapping, endpoint.EffectivePk(), sp)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(apiKey, "invalid_params").Inc()
		return relaygate.Fail(err.Error()), err
	}
	for k, v := range endpoint.PresetParams {
		if _, exists := resolved.Values[k]; !exists {
			resolved.Values[k] = v
		}
	}

	if conn == nil {
		conn, err = o.pool.Connect(ctx, endpoint.DbDrive)
		if err != nil {
			metrics.RequestsTotal.WithLabelValues(apiKey, "connection_error").Inc()
			return relaygate.Fail("datasource unavailable"), err
		}
	}

	result, err := o.execute(ctx, conn, endpoint, op, page, resolved.Values)

	elapsed := time.Since(start)
	metrics.RequestDuration.WithLabelValues(apiKey).Observe(elapsed.Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RequestsTotal.WithLabelValues(apiKey, outcome).Inc()

	if auth.SlowLogOrDefault() && elapsed.Milliseconds() >= auth.SlowLogThresholdOrDefault() {
		metrics.SlowQueriesTotal.WithLabelValues(apiKey).Inc()
		o.logger.Warn("slow query", "apiKey", apiKey, "trace", traceID, "elapsedMs", elapsed.Milliseconds())
	}
	o.logAudit(apiKey, traceID, client, resolved.Values, outcome)

	if err != nil {
		return relaygate.Fail(err.Error()), err
	}
	return result, nil
}

func (o *Orchestrator) execute(
	ctx context.Context,
	conn *dialect.Connection,
	endpoint *config.EndpointDef,
	op Operation,
	page PageArgs,
	resolved map[string]any,
) (relaygate.Result, error) {
	switch op {
	case OpList:
		stmt, warnings, err := sqlbuilder.BuildList(conn.Dialect, endpoint, resolved)
		if err != nil {
			return relaygate.Result{}, err
		}
		o.logWarnings(endpoint.TableName, warnings)
		rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return relaygate.Result{}, err
		}
		defer rows.Close()
		data, err := scanRows(rows)
		if err != nil {
			return relaygate.Result{}, err
		}
		return relaygate.Ok(data), nil

	case OpPage, OpDeepPage:
		var stmt *sqlbuilder.Statement
		var warnings []sqlbuilder.WhereWarning
		var err error
		if op == OpPage {
			stmt, warnings, err = sqlbuilder.BuildPage(conn.Dialect, endpoint, resolved, page.Page, page.PageSize, page.MaxTotal)
		} else {
			stmt, warnings, err = sqlbuilder.BuildDeepPage(conn.Dialect, endpoint, resolved, page.Page, page.PageSize)
		}
		if err != nil {
			return relaygate.Result{}, err
		}
		o.logWarnings(endpoint.TableName, warnings)
		rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return relaygate.Result{}, err
		}
		defer rows.Close()
		data, err := scanRows(rows)
		if err != nil {
			return relaygate.Result{}, err
		}
		total := extractTotal(data)
		res := relaygate.Ok(data)
		res.Total = total
		return res, nil

	case OpModify:
		stmt, warnings, err := sqlbuilder.BuildModify(conn.Dialect, endpoint, resolved)
		if err != nil {
			return relaygate.Result{}, err
		}
		o.logWarnings(endpoint.TableName, warnings)
		sqlResult, err := conn.ExecContext(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return relaygate.Result{}, err
		}
		affected, _ := sqlResult.RowsAffected()
		generated, _ := sqlResult.LastInsertId()
		res := relaygate.Ok(nil)
		res.AffectedRows = affected
		res.GeneratedKey = generated
		return res, nil

	default:
		return relaygate.Result{}, fmt.Errorf("orchestrator: unsupported operation %q", op)
	}
}

func (o *Orchestrator) logWarnings(table string, warnings []sqlbuilder.WhereWarning) {
	for _, w := range warnings {
		o.logger.Warn("sql builder warning", "table", table, "message", w.Message)
	}
}

func (o *Orchestrator) logAudit(apiKey, traceID, client string, values map[string]any, outcome string) {
	fields := make([]any, 0, len(values)*2+6)
	fields = append(fields, "apiKey", apiKey, "trace", traceID, "client", client, "outcome", outcome)
	for k, v := range values {
		fields = append(fields, k, logging.Mask(k, v))
	}
	o.logger.Info("audit", fields...)
}

func clientIdentity(sp config.StandardParams) string {
	for _, key := range []string{"audit_client", "clientId", "client_id"} {
		if v, ok := sp.Param(key); ok {
			return fmt.Sprintf("%v", v)
		}
	}
	return "anonymous"
}

// scanRows generically decodes *sql.Rows into []map[string]any, the shape
// every LIST/PAGE/DEEP_PAGE result is marshalled as.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeScanned(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func extractTotal(rows []map[string]any) int64 {
	if len(rows) == 0 {
		return 0
	}
	for _, key := range []string{"TotalCount"} {
		if v, ok := rows[0][key]; ok {
			switch t := v.(type) {
			case int64:
				return t
			case int:
				return int64(t)
			case string:
				var n int64
				fmt.Sscanf(t, "%d", &n)
				return n
			}
		}
	}
	return int64(len(rows))
}
