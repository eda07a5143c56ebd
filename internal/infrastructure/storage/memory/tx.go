package memory

import (
	"context"
	"sync"

	"kardex/internal/domain/ledger"
)

type txKey struct{}

// TxManager gives the in-memory store the same all-or-nothing write
// semantics as a database transaction: it snapshots the store before fn
// and restores the snapshot when fn fails. Transactions are serialized;
// nested calls join the enclosing transaction.
type TxManager struct {
	txMu  sync.Mutex
	store *Store
}

// NewTxManager creates a transaction manager over the store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTransaction executes fn, rolling the store back on error.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.store.mu.Lock()
	snapEntries := make(map[ledger.Scope][]ledger.MovementEntry, len(m.store.entries))
	for scope, list := range m.store.entries {
		cp := make([]ledger.MovementEntry, len(list))
		copy(cp, list)
		snapEntries[scope] = cp
	}
	snapSeq := make(map[ledger.Scope]int64, len(m.store.nextSeq))
	for scope, seq := range m.store.nextSeq {
		snapSeq[scope] = seq
	}
	m.store.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, struct{}{}))
	if err != nil {
		m.store.mu.Lock()
		m.store.entries = snapEntries
		m.store.nextSeq = snapSeq
		m.store.mu.Unlock()
	}
	return err
}

// ReadOnly executes fn without snapshot overhead.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
