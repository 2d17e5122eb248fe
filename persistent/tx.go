package persistent

import (
	"context"
	"database/sql"

	"github.com/buzkaaclicker/streams"
	"github.com/uptrace/bun"
)

type txKey struct{}

// Transactor runs functions in a bun transaction. Stores reach the running
// transaction through the context they are called with.
type Transactor struct {
	DB *bun.DB
}

var _ streams.Transactor = (*Transactor)(nil)

func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return t.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// idb returns the transaction running in ctx, or db outside of one.
func idb(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}
