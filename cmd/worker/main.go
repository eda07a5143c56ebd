// Package main is the entry point for the Kardex maintenance worker.
// It periodically sweeps configured companies, replaying every scope to
// repair any drift in derived costs and running balances.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"kardex/internal/core/id"
	"kardex/internal/core/scopelock"
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/policy"
	"kardex/internal/infrastructure/storage/postgres"
	"kardex/internal/infrastructure/storage/postgres/ledger_repo"
	"kardex/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting kardex worker")

	companyIDs, err := parseCompanyIDs(mustEnv("SWEEP_COMPANY_IDS"))
	if err != nil {
		log.Fatalw("invalid SWEEP_COMPANY_IDS", "error", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	store := ledger_repo.NewLedgerRepo(txManager)

	auditSink, err := postgres.NewAuditSink(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit sink", "error", err)
	}

	var resolver ledger.PolicyResolver
	if expr := getEnv("ALLOW_NEGATIVE_EXPR", ""); expr != "" {
		celResolver, err := policy.NewCELResolver(expr)
		if err != nil {
			log.Fatalw("failed to compile policy expression", "error", err)
		}
		resolver = celResolver
	} else {
		resolver = ledger.StaticResolver{Policy: ledger.DefaultPolicy()}
	}

	engine := ledger.NewEngine(types.DefaultRounding())
	replayer := ledger.NewReplayer(store, engine, resolver, txManager, auditSink, scopelock.New())

	worker := NewSweepWorker(replayer, companyIDs, log)
	worker.Interval = getEnvDuration("SWEEP_INTERVAL", time.Hour)
	worker.Parallelism = getEnvInt("SWEEP_PARALLELISM", 4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// SweepWorker replays every scope of the configured companies on a timer.
type SweepWorker struct {
	Interval    time.Duration
	Parallelism int

	replayer  *ledger.Replayer
	companies []id.ID
	log       *logger.Logger
}

func NewSweepWorker(replayer *ledger.Replayer, companies []id.ID, log *logger.Logger) *SweepWorker {
	return &SweepWorker{
		Interval:    time.Hour,
		Parallelism: 4,
		replayer:    replayer,
		companies:   companies,
		log:         log.WithComponent("sweep"),
	}
}

// Run sweeps immediately, then on every tick until ctx is cancelled.
func (w *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.sweepAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepAll(ctx)
		}
	}
}

func (w *SweepWorker) sweepAll(ctx context.Context) {
	for _, companyID := range w.companies {
		if ctx.Err() != nil {
			return
		}

		report, err := w.replayer.SweepCompany(ctx, companyID, w.Parallelism)
		if err != nil {
			w.log.Errorw("company sweep aborted",
				"company_id", companyID,
				"error", err,
			)
			continue
		}

		corrected := 0
		for _, s := range report.Summaries {
			corrected += s.Corrected
		}
		w.log.Infow("company swept",
			"company_id", companyID,
			"scopes", len(report.Summaries),
			"corrected", corrected,
			"failures", len(report.Failures),
		)
		for _, f := range report.Failures {
			w.log.Warnw("scope replay failed",
				"scope", f.Scope.String(),
				"error", f.Error,
			)
		}
	}
}

func parseCompanyIDs(raw string) ([]id.ID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]id.ID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parsed, err := id.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("parse company id %q: %w", p, err)
		}
		ids = append(ids, parsed)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no company ids configured")
	}
	return ids, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
