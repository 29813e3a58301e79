package uow

import (
	"context"

	"github.com/kirinyoku/quicktix/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	tx repository.Transactor
}

func NewUoW(tx repository.Transactor) *UoW {
	return &UoW{tx: tx}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks in registration order. Hooks
// registered by an attempt that rolled back are discarded.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.tx.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		// a retried transaction starts from a clean slate
		hooks = hooks[:0]
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
