package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTx records single-row queries issued through the manager.
type recordingTx struct {
	pgx.Tx
	sql  string
	args []any
}

func (t *recordingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	t.sql = sql
	t.args = args
	return nil
}

func TestTxManager_QueryRowJoinsAmbientTx(t *testing.T) {
	recording := &recordingTx{}
	ctx := context.WithValue(context.Background(), txKey{}, &Tx{Tx: recording})

	m := &TxManager{}
	m.QueryRow(ctx, "SELECT current_val FROM kardex_sequences WHERE key = $1", "KX-2026")

	assert.Equal(t, "SELECT current_val FROM kardex_sequences WHERE key = $1", recording.sql)
	require.Len(t, recording.args, 1)
	assert.Equal(t, "KX-2026", recording.args[0])
}

func TestTxManager_GetTx(t *testing.T) {
	m := &TxManager{}
	assert.Nil(t, m.GetTx(context.Background()))

	ambient := &Tx{Tx: &recordingTx{}}
	ctx := context.WithValue(context.Background(), txKey{}, ambient)
	assert.Same(t, ambient, m.GetTx(ctx))
}
