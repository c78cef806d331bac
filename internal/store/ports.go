// Package store defines the storage port shared by every expense backend.
//
// Backends are not safe for use by several processes at once: an Append from
// one process may interleave with a Persist from another and lose data.
package store

import (
	"context"

	"gastos/internal/core"
)

type (
	// Backend is the contract every storage implementation satisfies.
	Backend interface {
		// Init creates the store if it does not exist. It is idempotent.
		Init(ctx context.Context) error

		// Append adds one validated expense at the end of the store.
		Append(ctx context.Context, e core.Expense) error

		// List returns every readable expense in append order.
		List(ctx context.Context) ([]core.Expense, error)

		// Persist replaces the whole content of the store with expenses.
		Persist(ctx context.Context, expenses []core.Expense) error

		Close() error
	}
)
