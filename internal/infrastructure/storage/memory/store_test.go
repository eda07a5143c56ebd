package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
	"kardex/internal/core/id"
	"kardex/internal/core/types"
	"kardex/internal/domain/ledger"
)

func day(d int) time.Time {
	return time.Date(2026, time.February, d, 0, 0, 0, 0, time.UTC)
}

func entry(scope ledger.Scope, d int) *ledger.MovementEntry {
	return &ledger.MovementEntry{
		ID:           id.New(),
		Scope:        scope,
		Kind:         ledger.KindPurchase,
		DocumentDate: day(d),
		QtyIn:        types.NewQuantityFromInt(1),
		UnitCost:     types.MustMoney("1.00"),
		Version:      1,
	}
}

func TestInsert_AssignsSequence(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: id.New(), ProductID: id.New(), WarehouseID: id.New()}

	e1 := entry(scope, 1)
	require.NoError(t, store.Insert(ctx, e1))
	e2 := entry(scope, 2)
	require.NoError(t, store.Insert(ctx, e2))

	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, int64(2), e2.Seq)

	// A backdated insert keeps its (later) sequence but files at its
	// ordering position.
	mid := entry(scope, 1)
	require.NoError(t, store.Insert(ctx, mid))
	assert.Equal(t, int64(3), mid.Seq)

	list, err := store.ListFrom(ctx, scope, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// Same date orders by seq: e1 (seq 1) then mid (seq 3), then e2.
	assert.Equal(t, e1.ID, list[0].ID)
	assert.Equal(t, mid.ID, list[1].ID)
	assert.Equal(t, e2.ID, list[2].ID)
}

func TestLastBefore(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: id.New(), ProductID: id.New(), WarehouseID: id.New()}

	e1 := entry(scope, 1)
	require.NoError(t, store.Insert(ctx, e1))
	e2 := entry(scope, 3)
	require.NoError(t, store.Insert(ctx, e2))

	pred, err := store.LastBefore(ctx, scope, ledger.Position{DocumentDate: day(2)})
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, e1.ID, pred.ID)

	pred, err = store.LastBefore(ctx, scope, ledger.Position{DocumentDate: day(1)})
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestCompareAndSwapBalance(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: id.New(), ProductID: id.New(), WarehouseID: id.New()}

	e := entry(scope, 1)
	require.NoError(t, store.Insert(ctx, e))

	stamp := ledger.BalanceStamp{
		UnitCost:         types.MustMoney("2.00"),
		TotalCost:        types.MustMoney("2.00"),
		BalanceQty:       types.NewQuantityFromInt(1),
		BalanceTotalCost: types.MustMoney("2.00"),
	}

	// First swap at the expected version succeeds and bumps version.
	require.NoError(t, store.CompareAndSwapBalance(ctx, e.ID, 1, stamp))

	// Retrying with the stale version conflicts.
	err := store.CompareAndSwapBalance(ctx, e.ID, 1, stamp)
	require.Error(t, err)
	assert.True(t, apperror.IsVersionConflict(err))

	// The row is at version 2 now.
	require.NoError(t, store.CompareAndSwapBalance(ctx, e.ID, 2, stamp))

	// Unknown entry.
	err = store.CompareAndSwapBalance(ctx, id.New(), 1, stamp)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	store := NewStore()
	txm := NewTxManager(store)
	ctx := context.Background()
	scope := ledger.Scope{CompanyID: id.New(), ProductID: id.New(), WarehouseID: id.New()}

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := store.Insert(ctx, entry(scope, 1)); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	list, err := store.ListFrom(ctx, scope, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	// Sequence numbering also rewinds with the snapshot.
	e := entry(scope, 1)
	require.NoError(t, txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return store.Insert(ctx, e)
	}))
	assert.Equal(t, int64(1), e.Seq)
}
