// Command orchestrad is a minimal demonstration service wiring the
// supervisor and cron engines together behind an HTTP status surface,
// the way a real caller would: a cache-warmup task registered with the
// Supervisor, and a cache-sweep job registered with the Cron scheduler.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ridgeline/orchestra/backoff"
	"github.com/ridgeline/orchestra/cron"
	"github.com/ridgeline/orchestra/internal/logging"
	"github.com/ridgeline/orchestra/internal/otelinit"
	"github.com/ridgeline/orchestra/supervisor"
)

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// cacheWarmupTask fails its first two attempts, then succeeds — enough
// to exercise the restart/backoff loop end to end on every run of the
// demo binary.
type cacheWarmupTask struct {
	attempts atomic.Int32
}

func (t *cacheWarmupTask) TaskID() string  { return "cache-warmup" }
func (t *cacheWarmupTask) Name() string    { return "cache warmup" }
func (t *cacheWarmupTask) RestartPolicy() supervisor.RestartPolicy {
	return supervisor.MaxAttempts(5)
}
func (t *cacheWarmupTask) BackoffStrategy() backoff.Strategy {
	return backoff.Exponential{Initial: 200 * time.Millisecond, Max: 2 * time.Second, Factor: 2}
}

func (t *cacheWarmupTask) Run(ctx context.Context) error {
	n := t.attempts.Add(1)
	if n <= 2 {
		return errors.New("cache backend not yet reachable")
	}
	return nil
}

// cacheIndexTask depends on cache-warmup and only runs once warmup's
// setup has broadcast SetupReady.
type cacheIndexTask struct{}

func (t *cacheIndexTask) TaskID() string          { return "cache-index" }
func (t *cacheIndexTask) Dependencies() []string  { return []string{"cache-warmup"} }
func (t *cacheIndexTask) Run(ctx context.Context) error {
	return nil
}

// cacheSweepJob evicts expired cache entries on a fixed cadence.
type cacheSweepJob struct {
	runs atomic.Int64
}

func (j *cacheSweepJob) JobID() string { return "cache-sweep" }
func (j *cacheSweepJob) Name() string  { return "cache sweep" }
func (j *cacheSweepJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func main() {
	service := "orchestrad"
	logger := logging.Init(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := otelinit.InitTracer(ctx, service)
	shutdownMetrics := otelinit.InitMetrics(ctx, service)

	runtime := supervisor.NewRuntime(logger)
	if err := runtime.Register(&cacheWarmupTask{}); err != nil {
		logger.Error("failed to register cache-warmup", "error", err)
		os.Exit(1)
	}
	if err := runtime.Register(&cacheIndexTask{}); err != nil {
		logger.Error("failed to register cache-index", "error", err)
		os.Exit(1)
	}
	if err := runtime.Start(ctx); err != nil {
		logger.Error("supervisor failed to start", "error", err)
		os.Exit(1)
	}

	scheduler := cron.NewScheduler(logger)
	sweep := &cacheSweepJob{}
	sweepExpr := getEnvDefault("ORCHESTRA_CACHE_SWEEP_CRON", "*/10 * * * * * *")
	schedule, err := cron.ParseSchedule(sweepExpr)
	if err != nil {
		logger.Error("invalid cache sweep schedule", "error", err)
		os.Exit(1)
	}
	if err := scheduler.AddJob(schedule, sweep); err != nil {
		logger.Error("failed to register cache-sweep", "error", err)
		os.Exit(1)
	}
	go scheduler.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := struct {
			Supervisor supervisor.Stats `json:"supervisor"`
			Cron       cron.Stats       `json:"cron"`
		}{
			Supervisor: runtime.Stats(),
			Cron:       scheduler.Stats(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	addr := getEnvDefault("ORCHESTRA_LISTEN_ADDR", ":8080")
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()
	logger.Info("orchestrad started", "addr", addr)

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	scheduler.Shutdown()
	if err := runtime.Shutdown(shutdownCtx); err != nil {
		logger.Warn("supervisor shutdown did not complete cleanly", "error", err)
	}
	otelinit.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	logger.Info("shutdown complete")
}
