package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/id"
	"kardex/internal/domain/ledger"
)

func testScope(t *testing.T) ledger.Scope {
	t.Helper()
	return ledger.Scope{
		CompanyID:   id.MustParse("0195a000-0000-7000-8000-000000000001"),
		ProductID:   id.MustParse("0195a000-0000-7000-8000-000000000002"),
		WarehouseID: id.MustParse("0195a000-0000-7000-8000-000000000003"),
	}
}

func TestCELResolver_KindMatch(t *testing.T) {
	r, err := NewCELResolver(`kind == "adjustment_out"`)
	require.NoError(t, err)

	scope := testScope(t)

	pol, err := r.Resolve(context.Background(), scope, ledger.KindAdjustmentOut)
	require.NoError(t, err)
	assert.True(t, pol.AllowNegative)

	pol, err = r.Resolve(context.Background(), scope, ledger.KindSale)
	require.NoError(t, err)
	assert.False(t, pol.AllowNegative)
}

func TestCELResolver_ScopeVariables(t *testing.T) {
	scope := testScope(t)

	r, err := NewCELResolver(`kind in ["adjustment_out", "transfer_out"] && warehouse_id == "` + scope.WarehouseID.String() + `"`)
	require.NoError(t, err)

	pol, err := r.Resolve(context.Background(), scope, ledger.KindTransferOut)
	require.NoError(t, err)
	assert.True(t, pol.AllowNegative)

	other := scope
	other.WarehouseID = id.MustParse("0195a000-0000-7000-8000-0000000000ff")
	pol, err = r.Resolve(context.Background(), other, ledger.KindTransferOut)
	require.NoError(t, err)
	assert.False(t, pol.AllowNegative)
}

func TestNewCELResolver_RejectsNonBool(t *testing.T) {
	_, err := NewCELResolver(`kind + "x"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bool")
}

func TestNewCELResolver_RejectsBadSyntax(t *testing.T) {
	_, err := NewCELResolver(`kind ==`)
	require.Error(t, err)
}

func TestNewCELResolver_RejectsUnknownVariable(t *testing.T) {
	_, err := NewCELResolver(`tenant == "x"`)
	require.Error(t, err)
}
