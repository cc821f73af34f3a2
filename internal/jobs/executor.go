// Package jobs implements the Job-Flow Executor (spec.md §4.8): ordered
// execution of a JobDef's API and script steps under one transactional
// envelope, with each step's output folded into the context the next step
// resolves its params against.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/user/relaygate"
	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
	"github.com/user/relaygate/internal/metrics"
	"github.com/user/relaygate/internal/orchestrator"
	"github.com/user/relaygate/internal/security"
	"github.com/user/relaygate/internal/txn"
)

// Executor runs JobDefs end to end, coordinating the orchestrator for API
// steps and a pluggable relaygate.ScriptExecutor registry for script steps.
type Executor struct {
	registry     *config.Registry
	orchestrator *orchestrator.Orchestrator
	pool         *dialect.Pool
	scripts      map[string]relaygate.ScriptExecutor
	logger       relaygate.Logger
}

func New(registry *config.Registry, orch *orchestrator.Orchestrator, pool *dialect.Pool, logger relaygate.Logger) *Executor {
	return &Executor{
		registry:     registry,
		orchestrator: orch,
		pool:         pool,
		scripts:      make(map[string]relaygate.ScriptExecutor),
		logger:       logger,
	}
}

// RegisterScript installs the ScriptExecutor that handles a given script
// step's declared scriptType. Registering a second executor for the same
// type replaces the first.
func (e *Executor) RegisterScript(se relaygate.ScriptExecutor) {
	e.scripts[se.ScriptType()] = se
}

// Run executes jobKey's steps in order. All API steps share one
// txn.Coordinator; if job.TransactionEnabled() the coordinator opens
// transactional connections and commits them together only after every step
// succeeds, rolling all of them back on the first failure.
func (e *Executor) Run(ctx context.Context, jobKey string, sp config.StandardParams) (relaygate.JobResult, error) {
	start := time.Now()

	job, ok := e.registry.GetJobConfig(jobKey)
	if !ok {
		metrics.JobsTotal.WithLabelValues(jobKey, "not_found").Inc()
		return relaygate.JobResult{Success: false, Msg: "unknown job: " + jobKey}, fmt.Errorf("jobs: unknown job %q", jobKey)
	}

	if job.RequireAuth {
		auth := e.registry.GetEffectiveAuth(job.AuthConfig)
		if err := security.VerifySignature(auth, sp.Merged(), time.Now()); err != nil {
			metrics.JobsTotal.WithLabelValues(jobKey, "auth_failed").Inc()
			return relaygate.JobResult{Success: false, Msg: "unauthorized"}, err
		}
	}

	coord := txn.NewCoordinator(e.pool, job.TransactionEnabled())

	stepCtx := sp.Merged()
	steps := make([]relaygate.StepResult, 0, len(job.Jobs))

	var runErr error
	for i, step := range job.Jobs {
		stepStart := time.Now()
		name := fmt.Sprintf("step_%d_%s", i, step.Type)

		data, err := e.runStep(ctx, coord, step, sp, stepCtx)
		sr := relaygate.StepResult{
			StepName: name,
			Success:  err == nil,
			StepTime: time.Since(stepStart).Milliseconds(),
			Data:     data,
		}
		if err != nil {
			sr.Error = err.Error()
			steps = append(steps, sr)
			runErr = fmt.Errorf("jobs: %s failed: %w", name, err)
			break
		}
		stepCtx[name] = data
		steps = append(steps, sr)
	}

	outcome := "ok"
	if runErr != nil {
		outcome = "error"
		coord.RollbackAll(e.logf)
	} else if err := coord.CommitAll(e.logf); err != nil {
		outcome = "error"
		runErr = err
	}
	metrics.JobsTotal.WithLabelValues(jobKey, outcome).Inc()
	metrics.JobDuration.WithLabelValues(jobKey).Observe(time.Since(start).Seconds())

	result := relaygate.JobResult{
		Success:   runErr == nil,
		TotalTime: time.Since(start).Milliseconds(),
		Steps:     steps,
	}
	if runErr != nil {
		result.Msg = runErr.Error()
		return result, runErr
	}
	result.Msg = "ok"
	return result, nil
}

func (e *Executor) runStep(
	ctx context.Context,
	coord *txn.Coordinator,
	step config.JobStep,
	sp config.StandardParams,
	stepCtx map[string]any,
) (any, error) {
	switch step.Type {
	case config.StepAPI:
		return e.runAPIStep(ctx, coord, step, sp, stepCtx)
	case config.StepScript:
		return e.runScriptStep(ctx, step, stepCtx)
	default:
		return nil, fmt.Errorf("jobs: unsupported step type %q", step.Type)
	}
}

func (e *Executor) runAPIStep(
	ctx context.Context,
	coord *txn.Coordinator,
	step config.JobStep,
	sp config.StandardParams,
	stepCtx map[string]any,
) (any, error) {
	endpoint, ok := e.registry.GetSqlConfig(step.ApiKey)
	if !ok {
		return nil, fmt.Errorf("jobs: unknown endpoint %q", step.ApiKey)
	}
	conn, err := coord.Connection(ctx, endpoint.DbDrive)
	if err != nil {
		return nil, err
	}

	op, err := parseOperation(step.Operation)
	if err != nil {
		return nil, err
	}

	stepSP := config.StandardParams{
		Path:  sp.Path,
		Query: sp.Query,
		Body:  mergeContext(sp.Body, stepCtx),
	}

	result, err := e.orchestrator.Invoke(ctx, step.ApiKey, op, orchestrator.PageArgs{}, stepSP, conn)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (e *Executor) runScriptStep(ctx context.Context, step config.JobStep, stepCtx map[string]any) (any, error) {
	se, ok := e.scripts[step.ScriptType]
	if !ok {
		return nil, fmt.Errorf("jobs: no script executor registered for type %q", step.ScriptType)
	}
	bindings := make(map[string]any, len(stepCtx))
	for k, v := range stepCtx {
		bindings[k] = v
	}
	return se.Execute(ctx, step.ScriptContent, bindings)
}

func (e *Executor) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(fmt.Sprintf(format, args...))
	}
}

func mergeContext(body map[string]any, stepCtx map[string]any) map[string]any {
	out := make(map[string]any, len(body)+len(stepCtx))
	for k, v := range stepCtx {
		out[k] = v
	}
	for k, v := range body {
		out[k] = v
	}
	return out
}

func parseOperation(op string) (orchestrator.Operation, error) {
	switch op {
	case "", "list":
		return orchestrator.OpList, nil
	case "page":
		return orchestrator.OpPage, nil
	case "deepPage":
		return orchestrator.OpDeepPage, nil
	case "modify":
		return orchestrator.OpModify, nil
	default:
		return "", fmt.Errorf("jobs: unsupported step operation %q", op)
	}
}
