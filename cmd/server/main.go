// Package main is the entry point for the Kardex API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kardex/internal/core/scopelock"
	"kardex/internal/core/tx"
	"kardex/internal/core/types"
	"kardex/internal/domain/auth"
	"kardex/internal/domain/ledger"
	v1 "kardex/internal/infrastructure/http/v1"
	"kardex/internal/infrastructure/policy"
	"kardex/internal/infrastructure/storage/memory"
	"kardex/internal/infrastructure/storage/postgres"
	"kardex/internal/infrastructure/storage/postgres/ledger_repo"
	"kardex/pkg/logger"
	"kardex/pkg/numerator"
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

	ctx := context.Background()
	log.Info("starting kardex server")

	// --- Storage ---
	var (
		pool    *postgres.Pool
		store   ledger.Store
		txm     tx.Manager
		sink    ledger.Sink
		numbers ledger.NumberSource
	)

	switch getEnv("STORAGE", "postgres") {
	case "memory":
		// In-memory mode for local development and demos.
		memStore := memory.NewStore()
		store = memStore
		txm = memory.NewTxManager(memStore)
		sink = memory.NewRecordingSink()
		log.Info("using in-memory store")

	default:
		dsn := mustEnv("DATABASE_URL")
		poolCfg := postgres.DefaultPoolConfig(dsn)
		if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
			poolCfg.MaxConns = int32(maxConns)
		}

		pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		if getEnv("AUTO_MIGRATE", "true") == "true" {
			if err := postgres.Migrate(ctx, pool); err != nil {
				log.Fatalw("failed to apply migrations", "error", err)
			}
			log.Info("schema up to date")
		}

		txManager := postgres.NewTxManager(pool)
		txm = txManager
		store = ledger_repo.NewLedgerRepo(txManager)

		auditSink, err := postgres.NewAuditSink(txManager)
		if err != nil {
			log.Fatalw("failed to initialize audit sink", "error", err)
		}
		sink = auditSink

		// Movement numbers: KX-2026-00042. Routed through the transaction
		// manager so the increment rolls back with a failed post.
		numeratorService := numerator.New(txManager)
		numeratorCfg := numerator.DefaultConfig(getEnv("NUMBER_PREFIX", "KX"))
		numbers = ledger.NumberFunc(func(ctx context.Context, at time.Time) (string, error) {
			return numeratorService.GetNextNumber(ctx, numeratorCfg, nil, at)
		})
	}

	// --- Costing policy ---
	var resolver ledger.PolicyResolver
	if expr := getEnv("ALLOW_NEGATIVE_EXPR", ""); expr != "" {
		celResolver, err := policy.NewCELResolver(expr)
		if err != nil {
			log.Fatalw("failed to compile policy expression", "error", err)
		}
		resolver = celResolver
		log.Infow("policy expression loaded", "expr", expr)
	} else {
		resolver = ledger.StaticResolver{Policy: ledger.DefaultPolicy()}
	}

	// --- Ledger wiring ---
	rounding := types.DefaultRounding()
	engine := ledger.NewEngine(rounding)
	locks := scopelock.New()

	replayer := ledger.NewReplayer(store, engine, resolver, txm, sink, locks)
	ledgerService := ledger.NewService(store, engine, resolver, txm, sink, locks, replayer, numbers)
	valorization := ledger.NewValorization(store, rounding)

	// --- Auth ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	var authService *auth.Service
	if email := getEnv("API_USER_EMAIL", ""); email != "" {
		authService = auth.NewService(jwtService, auth.AccountConfig{
			UserID:       getEnv("API_USER_ID", "api"),
			Email:        email,
			PasswordHash: mustEnv("API_USER_PASSWORD_HASH"),
			Roles:        []string{"ledger:read", "ledger:write"},
			IsAdmin:      getEnv("API_USER_ADMIN", "false") == "true",
		})
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool,
		Logger:        log,
		JWTValidator:  jwtService,
		AuthService:   authService,
		LedgerService: ledgerService,
		Replayer:      replayer,
		Valorization:  valorization,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
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
