package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/scopelock"
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/storage/memory"
)

func TestReplayScope_Idempotent(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.sale(3, 5))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.purchase(2, 5, "20.00"))
	require.NoError(t, err)

	// The backdated insert already repaired the tail; a full replay finds
	// nothing to correct.
	sum, err := f.replayer.ReplayScope(ctx, f.scope)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Visited)
	assert.Equal(t, 0, sum.Corrected)
	assert.Nil(t, sum.FirstCorrection)
}

func TestReplayScope_RepairsDrift(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	sale, err := f.service.Post(ctx, f.sale(2, 4))
	require.NoError(t, err)

	// Corrupt the sale's derived fields directly.
	err = f.store.CompareAndSwapBalance(ctx, sale.ID, sale.Version, ledger.BalanceStamp{
		UnitCost:         types.MustMoney("999"),
		TotalCost:        types.MustMoney("999"),
		BalanceQty:       types.NewQuantityFromInt(999),
		BalanceTotalCost: types.MustMoney("999"),
	})
	require.NoError(t, err)

	sum, err := f.replayer.ReplayScope(ctx, f.scope)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Visited)
	assert.Equal(t, 1, sum.Corrected)
	require.NotNil(t, sum.FirstCorrection)
	assert.Equal(t, sale.ID, sum.FirstCorrection.EntryID)

	entries, err := f.store.ListFrom(ctx, f.scope, nil)
	require.NoError(t, err)
	repaired := entries[1]
	assert.Equal(t, "10", repaired.UnitCost.String())
	assert.Equal(t, "6.0000", repaired.BalanceQty.String())
	// Two rewrites: the corruption and the repair.
	assert.Equal(t, int64(3), repaired.Version)
}

func TestReplayScope_KeepsNonzeroCostBasis(t *testing.T) {
	f := newFixture(t, ledger.Policy{AllowNegative: true})
	ctx := context.Background()

	// A zero-cost receipt fully issued again must not displace the
	// carry-forward basis for the negative tail.
	_, err := f.service.Post(ctx, f.purchase(1, 10, "5.00"))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.sale(2, 10))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.purchase(3, 3, "0.00"))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.sale(4, 3))
	require.NoError(t, err)
	tail, err := f.service.Post(ctx, f.sale(5, 2))
	require.NoError(t, err)

	assert.Equal(t, "5", tail.UnitCost.String())
	assert.Equal(t, "-10", tail.TotalCost.String())
	assert.Empty(t, f.sink.ZeroBasis)

	// Replaying the unchanged scope must agree with the posting path.
	sum, err := f.replayer.ReplayScope(ctx, f.scope)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Visited)
	assert.Equal(t, 0, sum.Corrected)
	assert.Empty(t, f.sink.ZeroBasis)
}

func TestReplayScope_Cancelled(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = f.replayer.ReplayScope(cancelled, f.scope)
	assert.ErrorIs(t, err, context.Canceled)
}

// conflictStore simulates a concurrent writer: the first corrective swap
// fails with a version conflict.
type conflictStore struct {
	*memory.Store
	conflicts int
}

func (s *conflictStore) CompareAndSwapBalance(ctx context.Context, entryID id.ID, expectedVersion int64, stamp ledger.BalanceStamp) error {
	if s.conflicts > 0 {
		s.conflicts--
		return apperror.NewVersionConflict(entryID, expectedVersion)
	}
	return s.Store.CompareAndSwapBalance(ctx, entryID, expectedVersion, stamp)
}

func TestReplayScope_AbortsOnVersionConflict(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	sale, err := f.service.Post(ctx, f.sale(2, 4))
	require.NoError(t, err)

	// Corrupt the sale so the replay attempts a corrective swap.
	err = f.store.CompareAndSwapBalance(ctx, sale.ID, sale.Version, ledger.BalanceStamp{
		UnitCost:         types.MustMoney("1"),
		TotalCost:        types.MustMoney("1"),
		BalanceQty:       types.NewQuantityFromInt(1),
		BalanceTotalCost: types.MustMoney("1"),
	})
	require.NoError(t, err)

	store := &conflictStore{Store: f.store, conflicts: 1}
	engine := ledger.NewEngine(types.DefaultRounding())
	replayer := ledger.NewReplayer(store, engine,
		ledger.StaticResolver{Policy: ledger.DefaultPolicy()},
		memory.NewTxManager(f.store), memory.NewRecordingSink(), scopelock.New())

	_, err = replayer.ReplayScope(ctx, f.scope)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeRecalculationConflict))
}

func TestSweepCompany_CollectsFailures(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	// Healthy scope.
	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)

	// Second scope, same company.
	other := f.scope
	other.ProductID = id.New()
	_, err = f.service.Post(ctx, ledger.CandidateEntry{
		Scope:        other,
		Kind:         ledger.KindPurchase,
		DocumentDate: date(1),
		QtyIn:        types.NewQuantityFromInt(5),
		UnitCost:     types.MustMoney("4.00"),
	})
	require.NoError(t, err)

	report, err := f.replayer.SweepCompany(ctx, f.scope.CompanyID, 2)
	require.NoError(t, err)
	assert.Len(t, report.Summaries, 2)
	assert.Empty(t, report.Failures)

	// A conflicting store breaks every swap; corrupt one scope so its
	// replay needs one and fails, while the clean scope still succeeds.
	entries, err := f.store.ListFrom(ctx, other, nil)
	require.NoError(t, err)
	err = f.store.CompareAndSwapBalance(ctx, entries[0].ID, entries[0].Version, ledger.BalanceStamp{
		UnitCost:         types.MustMoney("1"),
		TotalCost:        types.MustMoney("1"),
		BalanceQty:       types.NewQuantityFromInt(1),
		BalanceTotalCost: types.MustMoney("1"),
	})
	require.NoError(t, err)

	store := &conflictStore{Store: f.store, conflicts: 1}
	engine := ledger.NewEngine(types.DefaultRounding())
	replayer := ledger.NewReplayer(store, engine,
		ledger.StaticResolver{Policy: ledger.DefaultPolicy()},
		memory.NewTxManager(f.store), memory.NewRecordingSink(), scopelock.New())

	report, err = replayer.SweepCompany(ctx, f.scope.CompanyID, 1)
	require.NoError(t, err)
	assert.Len(t, report.Summaries, 1)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, other, report.Failures[0].Scope)
}

func TestSweepCompany_RequiresCompany(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())

	_, err := f.replayer.SweepCompany(context.Background(), id.Nil(), 2)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
