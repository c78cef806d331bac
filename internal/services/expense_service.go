package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/store"
)

// EventPublisher announces store changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
	Close() error
}

// ExpenseService validates input, talks to the backend and computes
// aggregates. Every query re-reads the backend; nothing is cached.
//
// Mutations are read-modify-write without locking. Two processes sharing a
// store can lose each other's changes.
type ExpenseService struct {
	storage   store.Backend
	publisher EventPublisher
	now       func() time.Time
}

type Option func(*ExpenseService)

// WithPublisher enables change events. A nil publisher disables them.
func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithClock overrides the timestamp source used by Add.
func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewExpenseService(storage store.Backend, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init makes sure the backing store exists.
func (s *ExpenseService) Init(ctx context.Context) error {
	if err := s.storage.Init(ctx); err != nil {
		return core.NewStorageError("initialize store", err)
	}
	return nil
}

// Add validates the raw input and appends a new expense stamped with the
// current time. Validation errors leave the store unchanged.
func (s *ExpenseService) Add(ctx context.Context, category, description, amount string) (core.Expense, error) {
	if strings.TrimSpace(category) == "" {
		return core.Expense{}, &core.ValidationError{Field: core.FieldCategory, Reason: "cannot be empty"}
	}
	if strings.TrimSpace(description) == "" {
		return core.Expense{}, &core.ValidationError{Field: core.FieldDescription, Reason: "cannot be empty"}
	}
	money, err := core.ParseAmount(amount)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.NewExpense(s.now(), category, description, money)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.storage.Append(ctx, e); err != nil {
		return core.Expense{}, core.NewStorageError("save expense", err)
	}

	// Re-read to learn the reference the new record got.
	if all, err := s.List(ctx); err == nil && len(all) > 0 {
		if last := all[len(all)-1]; last.Timestamp.Equal(e.Timestamp) && last.Description == e.Description {
			e.Ref = last.Ref
		}
	}

	slog.InfoContext(ctx, "Expense added", applog.NewFields().
		WithComponent(applog.ComponentExpense).
		WithOperation(applog.OpCreate).
		WithExpense(e.Ref, e.Category, e.Amount.Cents).
		ToSlice()...)
	s.publish(ctx, amqp.EventExpenseCreated, e)
	return e, nil
}

// List returns every record in append order with Ref populated.
func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	items, err := s.storage.List(ctx)
	if err != nil {
		return nil, core.NewStorageError("read expenses", err)
	}
	if items == nil {
		items = []core.Expense{}
	}
	core.AssignRefs(items)
	return items, nil
}

// Recent returns at most n records from the end of the list, oldest first.
func (s *ExpenseService) Recent(ctx context.Context, n int) ([]core.Expense, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(items) > n {
		items = items[len(items)-n:]
	}
	return items, nil
}

// Delete removes the record at position (0-based) and rewrites the store.
func (s *ExpenseService) Delete(ctx context.Context, position int) (core.Expense, error) {
	items, err := s.List(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	if position < 0 || position >= len(items) {
		return core.Expense{}, &core.RangeError{Position: position, Count: len(items)}
	}
	return s.removeAt(ctx, items, position)
}

// DeleteRef removes the record whose reference is ref.
func (s *ExpenseService) DeleteRef(ctx context.Context, ref string) (core.Expense, error) {
	items, err := s.List(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	ref = strings.TrimSpace(ref)
	for i, e := range items {
		if e.Ref == ref {
			return s.removeAt(ctx, items, i)
		}
	}
	return core.Expense{}, &core.NotFoundError{Ref: ref}
}

func (s *ExpenseService) removeAt(ctx context.Context, items []core.Expense, i int) (core.Expense, error) {
	removed := items[i]
	rest := make([]core.Expense, 0, len(items)-1)
	rest = append(rest, items[:i]...)
	rest = append(rest, items[i+1:]...)

	if err := s.storage.Persist(ctx, rest); err != nil {
		return core.Expense{}, core.NewStorageError("delete expense", err)
	}

	slog.InfoContext(ctx, "Expense deleted",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldRef, removed.Ref,
		applog.FieldPosition, i,
		applog.FieldCount, len(rest))
	s.publish(ctx, amqp.EventExpenseDeleted, removed)
	return removed, nil
}

func (s *ExpenseService) Total(ctx context.Context) (core.Money, error) {
	items, err := s.List(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return core.Total(items), nil
}

// TotalsByCategory returns per-category sums in first-seen order.
func (s *ExpenseService) TotalsByCategory(ctx context.Context) ([]core.CategoryAmount, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return core.TotalsByCategory(items), nil
}

func (s *ExpenseService) Statistics(ctx context.Context) (core.Statistics, error) {
	items, err := s.List(ctx)
	if err != nil {
		return core.Statistics{}, err
	}
	return core.ComputeStatistics(items), nil
}

func (s *ExpenseService) publish(ctx context.Context, typ amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		return
	}
	ev := amqp.NewExpenseEvent(typ, e.Ref, e.Category, e.Description, e.Amount.Cents, e.Timestamp)
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		// Don't fail the call - the store is already updated
		slog.WarnContext(ctx, "Failed to publish expense event",
			applog.FieldComponent, applog.ComponentAMQP,
			"type", typ,
			applog.FieldRef, e.Ref,
			applog.FieldError, err)
	}
}

// Close closes both storage and publisher connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
