package ledger

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/scopelock"
	"kardex/internal/core/tx"
	"kardex/pkg/logger"
)

var tracer = otel.Tracer("kardex/ledger")

// Replayer recomputes a scope's balance chain by re-applying the costing
// engine to every entry in (document_date, seq) order and reconciling
// stored values through versioned compare-and-swap writes.
//
// Replaying an unchanged scope twice performs zero writes on the second run.
type Replayer struct {
	store    Store
	engine   *Engine
	policies PolicyResolver
	txm      tx.Manager
	audit    Sink
	locks    *scopelock.Set
}

// NewReplayer creates a replay engine sharing the posting service's lock set.
func NewReplayer(
	store Store,
	engine *Engine,
	policies PolicyResolver,
	txm tx.Manager,
	audit Sink,
	locks *scopelock.Set,
) *Replayer {
	return &Replayer{
		store:    store,
		engine:   engine,
		policies: policies,
		txm:      txm,
		audit:    audit,
		locks:    locks,
	}
}

// ReplayScope recomputes the whole scope from its first entry.
func (r *Replayer) ReplayScope(ctx context.Context, scope Scope) (RecalculationSummary, error) {
	return r.replay(ctx, scope, nil)
}

// ReplayFrom recomputes the scope from the given position onward.
func (r *Replayer) ReplayFrom(ctx context.Context, scope Scope, from Position) (RecalculationSummary, error) {
	return r.replay(ctx, scope, &from)
}

func (r *Replayer) replay(ctx context.Context, scope Scope, from *Position) (RecalculationSummary, error) {
	if err := scope.Validate(); err != nil {
		return RecalculationSummary{}, err
	}

	unlock := r.locks.Lock(scope.String())
	defer unlock()

	var sum RecalculationSummary
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sum, err = r.replayHeld(ctx, scope, from)
		return err
	})
	return sum, err
}

// replayHeld walks the scope assuming the caller holds its exclusive
// section. Cancellation is cooperative: checked between entries, never
// mid-entry, so an interrupted sweep always leaves a self-consistent prefix.
func (r *Replayer) replayHeld(ctx context.Context, scope Scope, from *Position) (RecalculationSummary, error) {
	ctx, span := tracer.Start(ctx, "ledger.replay",
		trace.WithAttributes(attribute.String("ledger.scope", scope.String())))
	defer span.End()

	sum := RecalculationSummary{Scope: scope}

	entries, err := r.store.ListFrom(ctx, scope, from)
	if err != nil {
		return sum, fmt.Errorf("load entries: %w", err)
	}

	prior := ZeroBalance()
	if from != nil {
		pred, err := r.store.LastBefore(ctx, scope, *from)
		if err != nil {
			return sum, fmt.Errorf("load predecessor: %w", err)
		}
		if pred != nil {
			prior = pred.Balance()
		}
	}

	lastKnown, err := r.store.LastKnownUnitCost(ctx, scope, from)
	if err != nil {
		return sum, fmt.Errorf("load cost basis: %w", err)
	}

	for i := range entries {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		e := &entries[i]
		pol, err := r.policies.Resolve(ctx, scope, e.Kind)
		if err != nil {
			return sum, fmt.Errorf("resolve policy: %w", err)
		}

		stamp, err := r.engine.Apply(prior, e.Candidate(), pol, lastKnown)
		if err != nil {
			return sum, err
		}
		sum.Visited++

		if stamp.Differs(e) {
			if err := r.store.CompareAndSwapBalance(ctx, e.ID, e.Version, StampOf(stamp)); err != nil {
				if apperror.IsVersionConflict(err) {
					// Someone moved this row since we read it. Abort the
					// sweep; the caller must retry the whole scope.
					return sum, apperror.NewRecalculationConflict(scope.String(), e.ID).WithCause(err)
				}
				return sum, fmt.Errorf("swap balance: %w", err)
			}

			corr := BalanceCorrected{
				EntryID:    e.ID,
				Scope:      scope,
				OldBalance: e.Balance(),
				NewBalance: stamp.Balance,
			}
			if sum.FirstCorrection == nil {
				first := corr
				sum.FirstCorrection = &first
			}
			last := corr
			sum.LastCorrection = &last
			sum.Corrected++
			r.audit.BalanceCorrected(ctx, corr)
		}
		if stamp.ZeroBasis {
			r.audit.ZeroBasisCostWarning(ctx, ZeroBasisCostWarning{Scope: scope, EntryID: e.ID})
		}

		prior = stamp.Balance
		// The carry-forward basis is the last nonzero average: a zero-cost
		// stretch must not displace it, or replaying an unchanged scope
		// would recost its negative tail.
		if stamp.Balance.Qty.IsPositive() {
			if avg := stamp.Balance.AvgUnitCost(r.engine.Rounding()); !avg.IsZero() {
				lastKnown = avg
			}
		}
	}

	r.audit.RecalculationSummary(ctx, sum)
	logger.Info(ctx, "scope replayed",
		"scope", scope.String(),
		"visited", sum.Visited,
		"corrected", sum.Corrected,
	)
	return sum, nil
}

// SweepReport collects the outcome of a company-wide maintenance sweep.
// Per-scope failures are reported, not thrown: one broken scope never
// aborts the others.
type SweepReport struct {
	CompanyID id.ID                  `json:"companyId"`
	Summaries []RecalculationSummary `json:"summaries"`
	Failures  []SweepFailure         `json:"failures,omitempty"`
}

// SweepFailure records one scope whose replay failed.
type SweepFailure struct {
	Scope Scope  `json:"scope"`
	Error string `json:"error"`
}

// SweepCompany replays every scope of the company, fanning out over
// independent scope-level replays with at most parallelism in flight.
func (r *Replayer) SweepCompany(ctx context.Context, companyID id.ID, parallelism int) (SweepReport, error) {
	report := SweepReport{CompanyID: companyID}
	if id.IsNil(companyID) {
		return report, apperror.NewValidation("company_id is required")
	}
	if parallelism < 1 {
		parallelism = 1
	}

	scopes, err := r.store.Scopes(ctx, companyID)
	if err != nil {
		return report, fmt.Errorf("list scopes: %w", err)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan Scope)
	)
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scope := range work {
				sum, err := r.ReplayScope(ctx, scope)
				mu.Lock()
				if err != nil {
					report.Failures = append(report.Failures, SweepFailure{Scope: scope, Error: err.Error()})
				} else {
					report.Summaries = append(report.Summaries, sum)
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, scope := range scopes {
		select {
		case <-ctx.Done():
			break dispatch
		case work <- scope:
		}
	}
	close(work)
	wg.Wait()

	logger.Info(ctx, "company sweep finished",
		"company_id", companyID,
		"scopes", len(scopes),
		"failed", len(report.Failures),
	)
	return report, ctx.Err()
}
