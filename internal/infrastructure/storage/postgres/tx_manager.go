package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kardex/internal/core/tx"
	"kardex/pkg/logger"
)

var tracer = otel.Tracer("kardex/tx")

var _ tx.Manager = (*TxManager)(nil)

// TxOptions configures one transaction.
type TxOptions struct {
	IsoLevel pgx.TxIsoLevel
	Access   pgx.TxAccessMode

	// StatementTimeout bounds every statement in the transaction. A replay
	// of a long scope is many short statements, not one long one, so a tight
	// bound is safe.
	StatementTimeout time.Duration

	// Savepoint shields the outer transaction from a failing nested call.
	// The posting path does not use it: a backdated replay failure must roll
	// back the insert too.
	Savepoint bool
}

// DefaultTxOptions returns the options used by the ledger paths.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsoLevel:         pgx.ReadCommitted,
		Access:           pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// TxManager carries transactions in the context. A nested RunInTransaction
// joins the ambient transaction, which is what makes "insert plus corrective
// replay commit or roll back together" hold on the posting path.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a transaction manager over the pool.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool}
}

type txKey struct{}

// Tx is the context-carried transaction.
type Tx struct {
	pgx.Tx
}

// RunInTransaction executes fn inside a transaction with default options,
// joining an ambient transaction when one is present.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, DefaultTxOptions(), fn)
}

// ReadOnly executes fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := DefaultTxOptions()
	opts.Access = pgx.ReadOnly
	return m.RunInTransactionWithOptions(ctx, opts, fn)
}

// RunInTransactionWithOptions executes fn with explicit options.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("tx.isolation", string(opts.IsoLevel))))
	defer span.End()

	if ambient := m.GetTx(ctx); ambient != nil {
		return m.runNested(ctx, ambient, opts, fn)
	}
	return m.runNew(ctx, opts, fn)
}

func (m *TxManager) runNew(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	pgxTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: opts.IsoLevel, AccessMode: opts.Access})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if opts.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds())
		if _, err := pgxTx.Exec(ctx, stmt); err != nil {
			_ = pgxTx.Rollback(ctx)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	txCtx := context.WithValue(ctx, txKey{}, &Tx{Tx: pgxTx})
	if err := fn(txCtx); err != nil {
		// Rollback on a fresh context: the fn error may be the caller's
		// cancellation, and the rollback still has to land.
		if rbErr := pgxTx.Rollback(context.Background()); rbErr != nil && rbErr != pgx.ErrTxClosed {
			logger.Error(ctx, "rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (m *TxManager) runNested(ctx context.Context, ambient *Tx, opts TxOptions, fn func(ctx context.Context) error) error {
	if !opts.Savepoint {
		return fn(ctx)
	}

	name := fmt.Sprintf("sp_%d", time.Now().UnixNano())
	if _, err := ambient.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := ambient.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			logger.Error(ctx, "rollback to savepoint failed", "savepoint", name, "error", rbErr)
		}
		return err
	}

	if _, err := ambient.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// GetTx returns the ambient transaction, or nil.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if t, ok := ctx.Value(txKey{}).(*Tx); ok {
		return t
	}
	return nil
}

// Querier is the subset of pgx operations the repositories need. Both the
// pool and a transaction satisfy it, so a repository call works inside and
// outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the ambient transaction when present, else the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t.Tx
	}
	return m.pool
}

// QueryRow routes through the ambient transaction when one is present. It
// lets the manager stand in where a single-row querier is expected, so a
// sequence increment issued while posting rolls back with the posting.
func (m *TxManager) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.GetQuerier(ctx).QueryRow(ctx, sql, args...)
}
