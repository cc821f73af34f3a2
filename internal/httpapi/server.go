// Package httpapi exposes the orchestrator and job executor over HTTP: one
// generic endpoint per configured apiKey/jobKey rather than one handler per
// route, since the set of endpoints is entirely config-driven.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/relaygate"
	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/jobs"
	"github.com/user/relaygate/internal/orchestrator"
)

type Server struct {
	orchestrator *orchestrator.Orchestrator
	jobs         *jobs.Executor
	logger       relaygate.Logger
}

func New(orch *orchestrator.Orchestrator, jobExec *jobs.Executor, logger relaygate.Logger) *Server {
	return &Server{orchestrator: orch, jobs: jobExec, logger: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/invoke/{apiKey}", s.handleInvoke)
	mux.HandleFunc("GET /api/invoke/{apiKey}", s.handleInvoke)
	mux.HandleFunc("POST /api/jobs/{jobKey}", s.handleJob)

	return mux
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	apiKey := r.PathValue("apiKey")
	sp, err := readStandardParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, relaygate.Fail("malformed request: "+err.Error()))
		return
	}

	op := orchestrator.Operation(queryOr(r, "op", string(orchestrator.OpList)))
	page := orchestrator.PageArgs{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", 20),
		MaxTotal: queryInt(r, "maxTotal", 0),
	}

	result, err := s.orchestrator.Invoke(r.Context(), apiKey, op, page, sp, nil)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobKey := r.PathValue("jobKey")
	sp, err := readStandardParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, relaygate.Fail("malformed request: "+err.Error()))
		return
	}

	result, err := s.jobs.Run(r.Context(), jobKey, sp)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func readStandardParams(r *http.Request) (config.StandardParams, error) {
	sp := config.StandardParams{
		Path:  make(map[string]any),
		Query: make(map[string]any),
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			sp.Query[k] = v[0]
		}
	}
	if r.Body != nil && r.ContentLength != 0 {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&body); err != nil && err.Error() != "EOF" {
			return sp, err
		}
		sp.Body = body
	}
	return sp, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
