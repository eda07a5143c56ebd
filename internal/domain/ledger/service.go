package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"kardex/internal/core/apperror"
	appctx "kardex/internal/core/context"
	"kardex/internal/core/id"
	"kardex/internal/core/scopelock"
	"kardex/internal/core/tx"
	"kardex/internal/core/types"
	"kardex/pkg/logger"
)

// NumberSource assigns human-readable movement numbers on insert.
type NumberSource interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// NumberFunc adapts a function to NumberSource.
type NumberFunc func(ctx context.Context, at time.Time) (string, error)

func (f NumberFunc) Next(ctx context.Context, at time.Time) (string, error) {
	return f(ctx, at)
}

// Service is the ledger's insertion path. Posting collaborators submit a
// CandidateEntry; the service validates it, costs it inside the scope's
// exclusive section, persists it, and — on a backdated insert — replays the
// scope's tail before returning, so the call returns only after downstream
// balances for the scope are consistent.
type Service struct {
	store    Store
	engine   *Engine
	policies PolicyResolver
	txm      tx.Manager
	audit    Sink
	locks    *scopelock.Set
	replayer *Replayer
	numbers  NumberSource // optional
}

// NewService creates the posting service. The replayer must share the same
// lock set so a backdated insert's corrective replay runs inside the
// already-held scope section.
func NewService(
	store Store,
	engine *Engine,
	policies PolicyResolver,
	txm tx.Manager,
	audit Sink,
	locks *scopelock.Set,
	replayer *Replayer,
	numbers NumberSource,
) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		policies: policies,
		txm:      txm,
		audit:    audit,
		locks:    locks,
		replayer: replayer,
		numbers:  numbers,
	}
}

// Post validates, costs and persists one movement. On conflict or rejection
// nothing is written. The returned entry carries its stamped balances.
func (s *Service) Post(ctx context.Context, cand CandidateEntry) (*MovementEntry, error) {
	if err := cand.Validate(); err != nil {
		return nil, err
	}

	pol, err := s.policies.Resolve(ctx, cand.Scope, cand.Kind)
	if err != nil {
		return nil, fmt.Errorf("resolve policy: %w", err)
	}

	unlock := s.locks.Lock(cand.Scope.String())
	defer unlock()

	var (
		entry     *MovementEntry
		backdated bool
		zeroBasis bool
	)
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		last, err := s.store.Last(ctx, cand.Scope)
		if err != nil {
			return fmt.Errorf("load last entry: %w", err)
		}

		backdated = last != nil && cand.DocumentDate.Before(last.DocumentDate)

		// Position the candidate after every existing same-date entry:
		// its seq will be larger than all of theirs.
		slot := Position{DocumentDate: cand.DocumentDate, Seq: math.MaxInt64}

		prior := ZeroBalance()
		switch {
		case last == nil:
		case !backdated:
			prior = last.Balance()
		default:
			pred, err := s.store.LastBefore(ctx, cand.Scope, slot)
			if err != nil {
				return fmt.Errorf("load predecessor: %w", err)
			}
			if pred != nil {
				prior = pred.Balance()
			}
		}

		lastKnown := types.ZeroMoney()
		if !cand.Kind.Incoming() && pol.AllowNegative && !prior.Qty.IsPositive() {
			lastKnown, err = s.store.LastKnownUnitCost(ctx, cand.Scope, &slot)
			if err != nil {
				return fmt.Errorf("load cost basis: %w", err)
			}
		}

		stamp, err := s.engine.Apply(prior, cand, pol, lastKnown)
		if err != nil {
			return err
		}
		zeroBasis = stamp.ZeroBasis

		e := &MovementEntry{
			ID:               id.New(),
			Scope:            cand.Scope,
			Kind:             cand.Kind,
			DocumentDate:     cand.DocumentDate,
			QtyIn:            cand.QtyIn,
			QtyOut:           cand.QtyOut,
			UnitCost:         stamp.UnitCost,
			TotalCost:        stamp.TotalCost,
			BalanceQty:       stamp.Balance.Qty,
			BalanceTotalCost: stamp.Balance.TotalCost,
			Version:          1,
			CreatedAt:        time.Now().UTC(),
			CreatedBy:        appctx.GetUserID(ctx),
		}
		if s.numbers != nil {
			e.Number, err = s.numbers.Next(ctx, cand.DocumentDate)
			if err != nil {
				return fmt.Errorf("assign number: %w", err)
			}
		}

		if err := s.store.Insert(ctx, e); err != nil {
			return err
		}

		if backdated {
			// The provisional stamp above is computed against the
			// then-current predecessor; downstream balances must be
			// consistent before this call returns.
			from := e.Position()
			if _, err := s.replayer.replayHeld(ctx, cand.Scope, &from); err != nil {
				return err
			}
		}

		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.EntryPosted(ctx, EntryPosted{Entry: *entry, Backdated: backdated})
	if zeroBasis {
		s.audit.ZeroBasisCostWarning(ctx, ZeroBasisCostWarning{Scope: cand.Scope, EntryID: entry.ID})
	}

	logger.Info(ctx, "movement posted",
		"entry_id", entry.ID,
		"number", entry.Number,
		"scope", cand.Scope.String(),
		"kind", string(cand.Kind),
		"backdated", backdated,
	)

	return entry, nil
}

// History returns a range of movement entries for audit and history views.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]MovementEntry, error) {
	if id.IsNil(filter.CompanyID) {
		return nil, apperror.NewValidation("company_id is required")
	}
	entries, err := s.store.History(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}
