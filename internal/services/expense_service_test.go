package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/store"
	"gastos/internal/store/csvfile"
	"gastos/internal/store/memory"
)

type fakePublisher struct {
	events []*amqp.ExpenseEvent
	err    error
	closed bool
}

func (f *fakePublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

// fixedClock advances one second per call so every record gets its own timestamp.
func fixedClock() func() time.Time {
	t := time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func backends(t *testing.T) map[string]func() store.Backend {
	dir := t.TempDir()
	return map[string]func() store.Backend{
		"memory": func() store.Backend { return memory.New() },
		"csv": func() store.Backend {
			return csvfile.New(filepath.Join(dir, "gastos.csv"), csvfile.WithLocation(time.UTC))
		},
	}
}

func newService(t *testing.T, b store.Backend, opts ...Option) *ExpenseService {
	t.Helper()
	svc := NewExpenseService(b, append([]Option{WithClock(fixedClock())}, opts...)...)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return svc
}

func mustAdd(t *testing.T, svc *ExpenseService, category, description, amount string) core.Expense {
	t.Helper()
	e, err := svc.Add(context.Background(), category, description, amount)
	if err != nil {
		t.Fatalf("add %s/%s/%s: %v", category, description, amount, err)
	}
	return e
}

func TestAddThenList(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, mk())
			ctx := context.Background()

			added := mustAdd(t, svc, " Comida ", "Almuerzo", "25.499")
			items, err := svc.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(items) != 1 {
				t.Fatalf("expected 1 record, got %d", len(items))
			}
			got := items[0]
			if got.Category != "Comida" || got.Description != "Almuerzo" || got.Amount.Cents != 2550 {
				t.Fatalf("unexpected record %+v", got)
			}
			if !got.Timestamp.Equal(added.Timestamp) || got.Timestamp.IsZero() {
				t.Fatalf("timestamp mismatch: %v vs %v", got.Timestamp, added.Timestamp)
			}
			if got.Ref == "" || got.Ref != added.Ref {
				t.Fatalf("ref mismatch: %q vs %q", got.Ref, added.Ref)
			}
		})
	}
}

func TestAddValidation(t *testing.T) {
	cases := []struct {
		name                          string
		category, description, amount string
		field                         string
	}{
		{"empty category", "", "x", "5", core.FieldCategory},
		{"blank category", "  ", "x", "5", core.FieldCategory},
		{"empty description", "x", "", "5", core.FieldDescription},
		{"negative amount", "x", "y", "-1", core.FieldAmount},
		{"zero amount", "x", "y", "0", core.FieldAmount},
		{"non-numeric amount", "x", "y", "abc", core.FieldAmount},
	}

	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, mk())
			ctx := context.Background()
			mustAdd(t, svc, "Food", "Bread", "1.50")

			for _, tc := range cases {
				_, err := svc.Add(ctx, tc.category, tc.description, tc.amount)
				var ve *core.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("%s: expected validation error, got %v", tc.name, err)
				}
				if ve.Field != tc.field {
					t.Fatalf("%s: expected field %s, got %s", tc.name, tc.field, ve.Field)
				}
			}

			items, err := svc.List(ctx)
			if err != nil || len(items) != 1 {
				t.Fatalf("store changed after failed adds: %v err=%v", items, err)
			}
		})
	}
}

func TestTotal(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()

	total, err := svc.Total(ctx)
	if err != nil || total.Cents != 0 {
		t.Fatalf("empty total = %v err=%v", total, err)
	}
	for _, a := range []string{"10.00", "20.50", "5.25"} {
		mustAdd(t, svc, "Cat", "d", a)
	}
	total, err = svc.Total(ctx)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.String() != "35.75" {
		t.Fatalf("total = %s, want 35.75", total)
	}
}

func TestTotalsByCategory(t *testing.T) {
	svc := newService(t, memory.New())
	mustAdd(t, svc, "Food", "a", "10")
	mustAdd(t, svc, "Food", "b", "5")
	mustAdd(t, svc, "Transport", "c", "3")

	totals, err := svc.TotalsByCategory(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	m := core.CategoryMap(totals)
	if len(m) != 2 || m["Food"].Cents != 1500 || m["Transport"].Cents != 300 {
		t.Fatalf("unexpected totals %v", m)
	}
}

func TestStatistics(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()

	st, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if st != (core.Statistics{}) {
		t.Fatalf("expected zero statistics, got %+v", st)
	}

	for _, a := range []string{"10", "20", "30"} {
		mustAdd(t, svc, "Cat", "d", a)
	}
	st, err = svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if st.Total.Cents != 6000 || st.Count != 3 || st.Average.Cents != 2000 || st.Max.Cents != 3000 || st.Min.Cents != 1000 {
		t.Fatalf("unexpected statistics %+v", st)
	}
}

func TestDelete(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, mk())
			ctx := context.Background()
			for _, d := range []string{"a", "b", "c"} {
				mustAdd(t, svc, "Cat", d, "1")
			}

			for _, pos := range []int{-1, 3, 10} {
				_, err := svc.Delete(ctx, pos)
				if !errors.Is(err, core.ErrOutOfRange) {
					t.Fatalf("position %d: expected range error, got %v", pos, err)
				}
			}
			items, _ := svc.List(ctx)
			if len(items) != 3 {
				t.Fatalf("store changed after failed deletes: %v", items)
			}

			removed, err := svc.Delete(ctx, 1)
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			if removed.Description != "b" {
				t.Fatalf("removed wrong record %+v", removed)
			}
			items, _ = svc.List(ctx)
			if len(items) != 2 || items[0].Description != "a" || items[1].Description != "c" {
				t.Fatalf("unexpected remaining records %v", items)
			}
		})
	}
}

func TestDeleteRef(t *testing.T) {
	svc := newService(t, memory.New())
	ctx := context.Background()
	a := mustAdd(t, svc, "Cat", "a", "1")
	b := mustAdd(t, svc, "Cat", "b", "2")

	if _, err := svc.DeleteRef(ctx, "19990101000000-0"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.DeleteRef(ctx, a.Ref); err != nil {
		t.Fatalf("delete ref: %v", err)
	}
	// b keeps its reference after a is gone.
	items, _ := svc.List(ctx)
	if len(items) != 1 || items[0].Ref != b.Ref {
		t.Fatalf("unexpected records %v", items)
	}
}

func TestRecent(t *testing.T) {
	svc := newService(t, memory.New())
	for _, d := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		mustAdd(t, svc, "Cat", d, d)
	}
	recent, err := svc.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 5 || recent[0].Description != "3" || recent[4].Description != "7" {
		t.Fatalf("unexpected recent %v", recent)
	}
}

func TestRoundTripFreshService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastos.csv")
	svc := newService(t, csvfile.New(path, csvfile.WithLocation(time.UTC)))
	var want []core.Expense
	for i, d := range []string{"a", "b", "c", "d"} {
		want = append(want, mustAdd(t, svc, "Cat", d, []string{"1", "2.5", "3.75", "4"}[i]))
	}

	fresh := newService(t, csvfile.New(path, csvfile.WithLocation(time.UTC)))
	got, err := fresh.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Description != want[i].Description || got[i].Amount != want[i].Amount || !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEventsPublished(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, memory.New(), WithPublisher(pub))
	ctx := context.Background()

	mustAdd(t, svc, "Food", "Bread", "1.50")
	if _, err := svc.Delete(ctx, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Add(ctx, "", "x", "1"); err == nil {
		t.Fatal("expected validation error")
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].Type != amqp.EventExpenseCreated || pub.events[1].Type != amqp.EventExpenseDeleted {
		t.Fatalf("unexpected event types %s %s", pub.events[0].Type, pub.events[1].Type)
	}
	if pub.events[0].AmountCents != 150 {
		t.Fatalf("unexpected amount %d", pub.events[0].AmountCents)
	}

	if err := svc.Close(); err != nil || !pub.closed {
		t.Fatalf("close: err=%v closed=%v", err, pub.closed)
	}
}

func TestPublishFailureDoesNotFailAdd(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	svc := newService(t, memory.New(), WithPublisher(pub))
	if _, err := svc.Add(context.Background(), "Food", "Bread", "1"); err != nil {
		t.Fatalf("add should succeed when publishing fails: %v", err)
	}
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		service := &ExpenseService{}
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})
}
