package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "verihire/pkg/domain-errors"
)

// Postgres runs fn inside a database transaction. The *sql.Tx travels in ctx,
// so every store resolving its executor with ExecutorFrom joins it.
type Postgres[S any] struct {
	db      *sql.DB
	store   S
	timeout time.Duration
}

func NewPostgres[S any](db *sql.DB, store S) *Postgres[S] {
	return &Postgres[S]{db: db, store: store, timeout: defaultTimeout}
}

func (t *Postgres[S]) RunInTx(ctx context.Context, fn func(ctx context.Context, store S) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if _, nested := From(ctx); nested {
		return fn(ctx, t.store)
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx), t.store); err != nil {
		return err
	}
	return sqlTx.Commit()
}
