package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/user/relaygate/internal/config"
	"github.com/user/relaygate/internal/dialect"
	"github.com/user/relaygate/internal/httpapi"
	"github.com/user/relaygate/internal/jobs"
	"github.com/user/relaygate/internal/logging"
	"github.com/user/relaygate/internal/orchestrator"
	"github.com/user/relaygate/internal/security"
)

func main() {
	configDir := flag.String("config-dir", "config", "directory containing db-config, auth-config, sql-config and job-config files")
	pattern := flag.String("pattern", "**/*", "glob (relative to config-dir) matched while classifying config files")
	port := flag.Int("port", 4000, "port for the HTTP API")
	flag.Parse()

	if v := os.Getenv("RELAYGATE_CONFIG_DIR"); v != "" && *configDir == "config" {
		*configDir = v
	}
	if v := os.Getenv("RELAYGATE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*port = p
		} else {
			log.Printf("ignoring malformed RELAYGATE_PORT=%q", v)
		}
	}

	logger := logging.New(os.Stderr)

	registry, err := config.New(*configDir, func(format string, args ...any) {
		logger.Warn(fmt.Sprintf(format, args...))
	})
	if err != nil {
		log.Fatalf("relaygated: registry init: %v", err)
	}
	if err := registry.LoadAll(*pattern); err != nil {
		log.Fatalf("relaygated: initial config load: %v", err)
	}

	pool := dialect.NewPool(registry.GetDbConfig())
	defer pool.Close()

	orch := orchestrator.New(registry, pool, security.NewLimiter(), logger)
	jobExec := jobs.New(registry, orch, pool, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := registry.Watch(ctx, *pattern); err != nil && ctx.Err() == nil {
			logger.Error("config watch stopped", "error", err)
		}
	}()

	server := httpapi.New(orch, jobExec, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: server.Routes(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("relaygated starting", "port", *port, "configDir", *configDir)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("relaygated: server failed: %v", err)
	}
	logger.Info("relaygated shutdown complete")
}
