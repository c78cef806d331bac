// Package menu implements the interactive text menu.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

const rule = "=================================================="

// Tracker is the part of the expense service the menu drives.
type Tracker interface {
	Add(ctx context.Context, category, description, amount string) (core.Expense, error)
	Recent(ctx context.Context, n int) ([]core.Expense, error)
	Statistics(ctx context.Context) (core.Statistics, error)
}

// errInputClosed ends the loop when the input reaches EOF.
var errInputClosed = errors.New("input closed")

type Menu struct {
	tracker  Tracker
	out      io.Writer
	lines    <-chan string
	stop     func()
	recent   int
	location string
}

type Option func(*Menu)

// WithRecent sets how many entries the summary lists.
func WithRecent(n int) Option {
	return func(m *Menu) {
		if n > 0 {
			m.recent = n
		}
	}
}

// WithLocation names where the data lives in the goodbye message.
func WithLocation(location string) Option {
	return func(m *Menu) { m.location = location }
}

func New(tracker Tracker, in io.Reader, out io.Writer, opts ...Option) *Menu {
	done := make(chan struct{})
	m := &Menu{
		tracker: tracker,
		out:     out,
		lines:   scanLines(in, done),
		stop:    sync.OnceFunc(func() { close(done) }),
		recent:  5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// scanLines feeds input lines to a channel so reads can be abandoned when
// ctx is cancelled. The reader goroutine exits once done is closed; a Scan
// already blocked on in returns only when in does.
func scanLines(in io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return ch
}

// Run shows the menu until the user exits, the input ends or ctx is
// cancelled. Only storage failures are returned.
func (m *Menu) Run(ctx context.Context) error {
	defer m.stop()
	for {
		m.printMenu()
		opt, err := m.readOption(ctx)
		if err != nil {
			return m.finish(err)
		}

		switch opt {
		case "1":
			err = m.addExpense(ctx)
		case "2":
			err = m.showSummary(ctx)
		case "3":
			return m.finish(nil)
		}
		if err != nil {
			return m.finish(err)
		}
	}
}

func (m *Menu) finish(err error) error {
	if err != nil && !errors.Is(err, errInputClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "Goodbye.")
	if m.location != "" {
		fmt.Fprintf(m.out, "Your data is stored in: %s\n", m.location)
	}
	return nil
}

func (m *Menu) printMenu() {
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, "GASTOS - EXPENSE TRACKER")
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, "1) Add an expense")
	fmt.Fprintln(m.out, "2) Show total and recent entries")
	fmt.Fprintln(m.out, "3) Exit")
	fmt.Fprintln(m.out, rule)
}

func (m *Menu) readOption(ctx context.Context) (string, error) {
	for {
		line, err := m.prompt(ctx, "Select an option (1-3): ")
		if err != nil {
			return "", err
		}
		switch line {
		case "1", "2", "3":
			return line, nil
		}
		fmt.Fprintln(m.out, "Invalid option. Please choose 1, 2 or 3.")
	}
}

func (m *Menu) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(m.out, label)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-m.lines:
		if !ok {
			return "", errInputClosed
		}
		return strings.TrimSpace(line), nil
	}
}

// promptUntil repeats the prompt until check accepts the answer.
func (m *Menu) promptUntil(ctx context.Context, label string, check func(string) error) (string, error) {
	for {
		line, err := m.prompt(ctx, label)
		if err != nil {
			return "", err
		}
		if err := check(line); err != nil {
			fmt.Fprintln(m.out, core.UserMessage(err))
			continue
		}
		return line, nil
	}
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return &core.ValidationError{Field: field, Reason: "cannot be empty"}
		}
		return nil
	}
}

func (m *Menu) addExpense(ctx context.Context) error {
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "--- NEW EXPENSE ---")
	fmt.Fprintf(m.out, "Suggested categories: %s\n", strings.Join(core.DefaultCategories, ", "))

	category, err := m.promptUntil(ctx, "Category: ", notEmpty(core.FieldCategory))
	if err != nil {
		return err
	}
	description, err := m.promptUntil(ctx, "Description: ", notEmpty(core.FieldDescription))
	if err != nil {
		return err
	}
	amount, err := m.promptUntil(ctx, "Amount ($): ", func(s string) error {
		_, err := core.ParseAmount(s)
		return err
	})
	if err != nil {
		return err
	}

	e, err := m.tracker.Add(ctx, category, description, amount)
	if err != nil {
		if errors.Is(err, core.ErrStorage) {
			return err
		}
		fmt.Fprintln(m.out, core.UserMessage(err))
		return nil
	}

	slog.DebugContext(ctx, "Expense added from menu", applog.FieldComponent, applog.ComponentMenu, applog.FieldRef, e.Ref)
	fmt.Fprintf(m.out, "Expense saved: %s - $%s\n", e.Description, e.Amount)
	return nil
}

func (m *Menu) showSummary(ctx context.Context) error {
	st, err := m.tracker.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, "EXPENSE SUMMARY")
	fmt.Fprintln(m.out, rule)
	fmt.Fprintf(m.out, "Recorded expenses: %d\n", st.Count)
	fmt.Fprintf(m.out, "Total spent: $%s\n", st.Total)
	fmt.Fprintln(m.out, rule)

	if st.Count == 0 {
		return nil
	}
	recent, err := m.tracker.Recent(ctx, m.recent)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Last %d expenses:\n", m.recent)
	for _, e := range recent {
		fmt.Fprintf(m.out, "  - [%s] %s: $%s\n", e.Category, e.Description, e.Amount)
	}
	return nil
}
