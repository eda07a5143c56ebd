// Package ledger_repo provides the PostgreSQL implementation of the
// ledger store.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/storage/postgres"
)

const movementsTable = "kardex_movements"

// Postgres unique_violation, raised by ux_kardex_movements_scope_seq when a
// live insert races another writer in the same scope.
const uniqueViolation = "23505"

var movementColumns = []string{
	"id", "number",
	"company_id", "product_id", "warehouse_id",
	"kind", "document_date", "seq",
	"qty_in", "qty_out",
	"unit_cost", "total_cost",
	"balance_qty", "balance_total_cost",
	"version", "created_at", "created_by",
}

// LedgerRepo implements ledger.Store on PostgreSQL. Rows are never
// physically reordered; ordering is always expressed in the queries as
// (document_date, seq).
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates the repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ ledger.Store = (*LedgerRepo)(nil)

// Insert persists the entry, computing the scope's next insertion sequence
// in the same statement. The caller holds the scope's exclusive section, so
// MAX(seq)+1 cannot race another insert for the scope.
func (r *LedgerRepo) Insert(ctx context.Context, e *ledger.MovementEntry) error {
	sql := `
		INSERT INTO kardex_movements (
			id, number, company_id, product_id, warehouse_id,
			kind, document_date, seq,
			qty_in, qty_out, unit_cost, total_cost,
			balance_qty, balance_total_cost,
			version, created_at, created_by
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM kardex_movements
			  WHERE company_id = $3 AND product_id = $4 AND warehouse_id = $5),
			$8, $9, $10, $11,
			$12, $13,
			$14, $15, $16
		)
		RETURNING seq
	`

	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql,
		e.ID, e.Number, e.CompanyID, e.ProductID, e.WarehouseID,
		e.Kind, e.DocumentDate,
		e.QtyIn, e.QtyOut, e.UnitCost, e.TotalCost,
		e.BalanceQty, e.BalanceTotalCost,
		e.Version, e.CreatedAt, e.CreatedBy,
	).Scan(&e.Seq)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.NewInsertConflict(e.Scope.String()).WithCause(err)
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (r *LedgerRepo) scopeEq(scope ledger.Scope) squirrel.Eq {
	return squirrel.Eq{
		"company_id":   scope.CompanyID,
		"product_id":   scope.ProductID,
		"warehouse_id": scope.WarehouseID,
	}
}

func (r *LedgerRepo) Last(ctx context.Context, scope ledger.Scope) (*ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(r.scopeEq(scope)).
		OrderBy("document_date DESC", "seq DESC").
		Limit(1)

	return r.getOne(ctx, q)
}

func (r *LedgerRepo) LastBefore(ctx context.Context, scope ledger.Scope, pos ledger.Position) (*ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(r.scopeEq(scope)).
		Where(squirrel.Or{
			squirrel.Lt{"document_date": pos.DocumentDate},
			squirrel.And{
				squirrel.Eq{"document_date": pos.DocumentDate},
				squirrel.Lt{"seq": pos.Seq},
			},
		}).
		OrderBy("document_date DESC", "seq DESC").
		Limit(1)

	return r.getOne(ctx, q)
}

func (r *LedgerRepo) getOne(ctx context.Context, q squirrel.SelectBuilder) (*ledger.MovementEntry, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &e, nil
}

func (r *LedgerRepo) ListFrom(ctx context.Context, scope ledger.Scope, pos *ledger.Position) ([]ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(r.scopeEq(scope))

	if pos != nil {
		q = q.Where(squirrel.Or{
			squirrel.Gt{"document_date": pos.DocumentDate},
			squirrel.And{
				squirrel.Eq{"document_date": pos.DocumentDate},
				squirrel.GtOrEq{"seq": pos.Seq},
			},
		})
	}

	q = q.OrderBy("document_date", "seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepo) LastKnownUnitCost(ctx context.Context, scope ledger.Scope, pos *ledger.Position) (types.Money, error) {
	q := r.builder.Select("balance_qty", "balance_total_cost").
		From(movementsTable).
		Where(r.scopeEq(scope)).
		Where(squirrel.Gt{"balance_qty": int64(0)}).
		Where(squirrel.NotEq{"balance_total_cost": 0})

	if pos != nil {
		q = q.Where(squirrel.Or{
			squirrel.Lt{"document_date": pos.DocumentDate},
			squirrel.And{
				squirrel.Eq{"document_date": pos.DocumentDate},
				squirrel.Lt{"seq": pos.Seq},
			},
		})
	}

	q = q.OrderBy("document_date DESC", "seq DESC").Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return types.ZeroMoney(), fmt.Errorf("build query: %w", err)
	}

	var (
		qty   types.Quantity
		total types.Money
	)
	querier := r.txm.GetQuerier(ctx)
	err = querier.QueryRow(ctx, sql, args...).Scan(&qty, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ZeroMoney(), nil
		}
		return types.ZeroMoney(), fmt.Errorf("get cost basis: %w", err)
	}
	return total.Div(qty.Decimal()), nil
}

// CompareAndSwapBalance rewrites derived fields iff version matches,
// bumping version in the same statement. Zero affected rows means either a
// lost race or a missing entry; the follow-up read disambiguates.
func (r *LedgerRepo) CompareAndSwapBalance(ctx context.Context, entryID id.ID, expectedVersion int64, stamp ledger.BalanceStamp) error {
	sql := `
		UPDATE kardex_movements
		SET unit_cost = $1,
		    total_cost = $2,
		    balance_qty = $3,
		    balance_total_cost = $4,
		    version = version + 1
		WHERE id = $5 AND version = $6
	`

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql,
		stamp.UnitCost, stamp.TotalCost,
		stamp.BalanceQty, stamp.BalanceTotalCost,
		entryID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("swap balance: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current int64
	err = querier.QueryRow(ctx, "SELECT version FROM kardex_movements WHERE id = $1", entryID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewNotFound("movement entry", entryID)
		}
		return fmt.Errorf("check version: %w", err)
	}
	return apperror.NewVersionConflict(entryID, expectedVersion).WithDetail("current_version", current)
}

func (r *LedgerRepo) Scopes(ctx context.Context, companyID id.ID) ([]ledger.Scope, error) {
	sql := `
		SELECT DISTINCT company_id, product_id, warehouse_id
		FROM kardex_movements
		WHERE company_id = $1
		ORDER BY product_id, warehouse_id
	`

	var scopes []ledger.Scope
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &scopes, sql, companyID); err != nil {
		return nil, fmt.Errorf("select scopes: %w", err)
	}
	return scopes, nil
}

func (r *LedgerRepo) LatestPerScope(ctx context.Context, companyID id.ID) ([]ledger.MovementEntry, error) {
	sql := `
		SELECT DISTINCT ON (product_id, warehouse_id)
			id, number, company_id, product_id, warehouse_id,
			kind, document_date, seq,
			qty_in, qty_out, unit_cost, total_cost,
			balance_qty, balance_total_cost,
			version, created_at, created_by
		FROM kardex_movements
		WHERE company_id = $1
		ORDER BY product_id, warehouse_id, document_date DESC, seq DESC
	`

	var entries []ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, companyID); err != nil {
		return nil, fmt.Errorf("select latest per scope: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepo) History(ctx context.Context, filter ledger.HistoryFilter) ([]ledger.MovementEntry, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"company_id": filter.CompanyID})

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"document_date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"document_date": *filter.ToDate})
	}

	q = q.OrderBy("product_id", "warehouse_id", "document_date", "seq")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []ledger.MovementEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return entries, nil
}
