package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/scopelock"
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
	"kardex/internal/infrastructure/storage/memory"
)

type fixture struct {
	store    *memory.Store
	sink     *memory.RecordingSink
	service  *ledger.Service
	replayer *ledger.Replayer
	scope    ledger.Scope
}

func newFixture(t *testing.T, pol ledger.Policy) *fixture {
	t.Helper()

	store := memory.NewStore()
	sink := memory.NewRecordingSink()
	engine := ledger.NewEngine(types.DefaultRounding())
	resolver := ledger.StaticResolver{Policy: pol}
	locks := scopelock.New()
	txm := memory.NewTxManager(store)

	replayer := ledger.NewReplayer(store, engine, resolver, txm, sink, locks)
	service := ledger.NewService(store, engine, resolver, txm, sink, locks, replayer, nil)

	return &fixture{
		store:    store,
		sink:     sink,
		service:  service,
		replayer: replayer,
		scope: ledger.Scope{
			CompanyID:   id.New(),
			ProductID:   id.New(),
			WarehouseID: id.New(),
		},
	}
}

func date(day int) time.Time {
	return time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) purchase(day int, qty int64, unitCost string) ledger.CandidateEntry {
	return ledger.CandidateEntry{
		Scope:        f.scope,
		Kind:         ledger.KindPurchase,
		DocumentDate: date(day),
		QtyIn:        types.NewQuantityFromInt(qty),
		UnitCost:     types.MustMoney(unitCost),
	}
}

func (f *fixture) sale(day int, qty int64) ledger.CandidateEntry {
	return ledger.CandidateEntry{
		Scope:        f.scope,
		Kind:         ledger.KindSale,
		DocumentDate: date(day),
		QtyOut:       types.NewQuantityFromInt(qty),
	}
}

func TestPost_StampsRunningBalance(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	e1, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, int64(1), e1.Version)
	assert.Equal(t, "100", e1.BalanceTotalCost.String())

	e2, err := f.service.Post(ctx, f.purchase(2, 5, "20.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.Seq)
	assert.Equal(t, "15.0000", e2.BalanceQty.String())
	assert.Equal(t, "200", e2.BalanceTotalCost.String())

	e3, err := f.service.Post(ctx, f.sale(3, 5))
	require.NoError(t, err)
	assert.Equal(t, "13.333333", e3.UnitCost.String())
	assert.Equal(t, "66.67", e3.TotalCost.String())
	assert.Equal(t, "10.0000", e3.BalanceQty.String())
	assert.Equal(t, "133.33", e3.BalanceTotalCost.String())

	require.Len(t, f.sink.Posted, 3)
	assert.False(t, f.sink.Posted[2].Backdated)
}

func TestPost_RejectsOversell(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 3, "10.00"))
	require.NoError(t, err)

	_, err = f.service.Post(ctx, f.sale(2, 5))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	// Nothing written for the rejected movement.
	entries, err := f.store.ListFrom(ctx, f.scope, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPost_RejectsSuppliedOutgoingCost(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())

	cand := f.sale(1, 5)
	cand.UnitCost = types.MustMoney("9.99")

	_, err := f.service.Post(context.Background(), cand)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestPost_BackdatedRecalculatesTail(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)

	sale, err := f.service.Post(ctx, f.sale(3, 5))
	require.NoError(t, err)
	assert.Equal(t, "10", sale.UnitCost.String())
	assert.Equal(t, "50", sale.BalanceTotalCost.String())

	// Backdate a receipt between the two. The sale must be recosted
	// before Post returns.
	mid, err := f.service.Post(ctx, f.purchase(2, 5, "20.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), mid.Seq)
	assert.True(t, f.sink.Posted[2].Backdated)

	entries, err := f.store.ListFrom(ctx, f.scope, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Ordering is (document_date, seq): day1, day2 (the late insert), day3.
	recosted := entries[2]
	assert.Equal(t, sale.ID, recosted.ID)
	assert.Equal(t, "13.333333", recosted.UnitCost.String())
	assert.Equal(t, "66.67", recosted.TotalCost.String())
	assert.Equal(t, "10.0000", recosted.BalanceQty.String())
	assert.Equal(t, "133.33", recosted.BalanceTotalCost.String())
	assert.Equal(t, int64(2), recosted.Version)

	assert.Equal(t, 1, f.sink.CorrectionCount())
}

func TestPost_BackdatedEquivalence(t *testing.T) {
	ctx := context.Background()

	// Chronological order.
	a := newFixture(t, ledger.DefaultPolicy())
	_, err := a.service.Post(ctx, a.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	_, err = a.service.Post(ctx, a.purchase(2, 5, "20.00"))
	require.NoError(t, err)
	_, err = a.service.Post(ctx, a.sale(3, 5))
	require.NoError(t, err)

	// Same movements, the day-2 receipt arriving last.
	b := newFixture(t, ledger.DefaultPolicy())
	_, err = b.service.Post(ctx, b.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	_, err = b.service.Post(ctx, b.sale(3, 5))
	require.NoError(t, err)
	_, err = b.service.Post(ctx, b.purchase(2, 5, "20.00"))
	require.NoError(t, err)

	aEntries, err := a.store.ListFrom(ctx, a.scope, nil)
	require.NoError(t, err)
	bEntries, err := b.store.ListFrom(ctx, b.scope, nil)
	require.NoError(t, err)
	require.Len(t, bEntries, len(aEntries))

	for i := range aEntries {
		assert.Equal(t, aEntries[i].Kind, bEntries[i].Kind, "entry %d", i)
		assert.True(t, aEntries[i].UnitCost.Equal(bEntries[i].UnitCost), "entry %d unit cost", i)
		assert.True(t, aEntries[i].TotalCost.Equal(bEntries[i].TotalCost), "entry %d total cost", i)
		assert.Equal(t, aEntries[i].BalanceQty, bEntries[i].BalanceQty, "entry %d balance qty", i)
		assert.True(t, aEntries[i].BalanceTotalCost.Equal(bEntries[i].BalanceTotalCost), "entry %d balance total", i)
	}
}

func TestPost_BackdatedCannotOversellLater(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.sale(3, 10))
	require.NoError(t, err)

	// A backdated issue that would drive the day-3 sale negative is
	// rejected, and the whole insert rolls back.
	_, err = f.service.Post(ctx, f.sale(2, 5))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	entries, err := f.store.ListFrom(ctx, f.scope, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPost_ZeroBasisWarning(t *testing.T) {
	f := newFixture(t, ledger.Policy{AllowNegative: true})
	ctx := context.Background()

	// No history: the issue succeeds under the negative-allowed policy but
	// its cost basis is zero, which is flagged to the audit sink.
	e, err := f.service.Post(ctx, f.sale(1, 4))
	require.NoError(t, err)
	assert.True(t, e.UnitCost.IsZero())
	assert.Equal(t, "-4.0000", e.BalanceQty.String())

	require.Len(t, f.sink.ZeroBasis, 1)
	assert.Equal(t, e.ID, f.sink.ZeroBasis[0].EntryID)
}

func TestPost_NegativeTailCarriesLastKnownCost(t *testing.T) {
	f := newFixture(t, ledger.Policy{AllowNegative: true})
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 2, "7.50"))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.sale(2, 2))
	require.NoError(t, err)

	// Balance is now zero; the next issue carries 7.50 forward.
	e, err := f.service.Post(ctx, f.sale(3, 2))
	require.NoError(t, err)
	assert.Equal(t, "7.5", e.UnitCost.String())
	assert.Equal(t, "-15", e.BalanceTotalCost.String())
	assert.Empty(t, f.sink.ZeroBasis)
}

func TestHistory_RequiresCompany(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())

	_, err := f.service.History(context.Background(), ledger.HistoryFilter{})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestHistory_Filters(t *testing.T) {
	f := newFixture(t, ledger.DefaultPolicy())
	ctx := context.Background()

	_, err := f.service.Post(ctx, f.purchase(1, 10, "10.00"))
	require.NoError(t, err)
	_, err = f.service.Post(ctx, f.sale(2, 3))
	require.NoError(t, err)

	kind := ledger.KindSale
	entries, err := f.service.History(ctx, ledger.HistoryFilter{
		CompanyID: f.scope.CompanyID,
		Kind:      &kind,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.KindSale, entries[0].Kind)
}
