package memory

import (
	"context"
	"sync"

	"gastos/internal/core"
)

// Store keeps expenses in process memory. Nothing survives a restart.
type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

func New(seed ...core.Expense) *Store {
	return &Store{items: append([]core.Expense(nil), seed...)}
}

func (s *Store) Init(_ context.Context) error { return nil }

// Append stores the expense.
func (s *Store) Append(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Ref = ""
	s.items = append(s.items, e)
	return nil
}

// List returns a copy of the stored expenses.
func (s *Store) List(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...), nil
}

func (s *Store) Persist(_ context.Context, expenses []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]core.Expense, len(expenses))
	for i, e := range expenses {
		e.Ref = ""
		s.items[i] = e
	}
	return nil
}

func (s *Store) Close() error { return nil }
