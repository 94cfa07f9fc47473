package memory

import (
	"context"

	"quiver/internal/domain/repositories"
)

// TransactionManager serializes multi-step mutations by holding the
// whole store for the duration of fn. Repository calls inside fn see
// the tx marker and skip their own locking.
//
// There is no rollback: callers validate before mutating, matching the
// store contract that a failed transaction leaves no partial state.
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager over the arena.
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx executes fn while holding the store exclusively.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if inTx(ctx) { // nested transaction joins the outer one
		return fn(ctx)
	}
	tm.store.mu.Lock()
	defer tm.store.mu.Unlock()
	return fn(context.WithValue(ctx, txMarker{}, true))
}
