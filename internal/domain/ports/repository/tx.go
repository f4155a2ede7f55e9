package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `qx`.
//
// Use-case interfaces stay clean (no transaction types leak out), while
// repository methods that accept `qx any` can detect a tx and run tx-bound
// Exec/Query as needed. The atomic transcript replacement relies on it:
// delete + reinsert + session update all ride a single tx.
//
// USAGE
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//	    // call repositories with the same ctx and tx
//	    return repo.ReplaceMessages(ctx, tx, profileID, msgs)
//	})
//
// The concrete type of `qx` is infra-defined (pgx.Tx for Postgres).
// Repositories MUST gracefully accept `nil` qx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
