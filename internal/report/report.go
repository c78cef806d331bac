// Package report renders expenses and aggregates for the one-shot commands.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"gastos/internal/core"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("invalid output format %q: must be one of [table json yaml]", s)
	}
}

type ExpenseRow struct {
	Position    int    `json:"position" yaml:"position"`
	Ref         string `json:"ref" yaml:"ref"`
	Date        string `json:"date" yaml:"date"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
	Amount      string `json:"amount" yaml:"amount"`
	AmountCents int64  `json:"amount_cents" yaml:"amount_cents"`
}

type CategoryRow struct {
	Category   string `json:"category" yaml:"category"`
	Total      string `json:"total" yaml:"total"`
	TotalCents int64  `json:"total_cents" yaml:"total_cents"`
	Percentage string `json:"percentage" yaml:"percentage"`
	// Bar is one block per two percentage points, table output only.
	Bar string `json:"-" yaml:"-"`
}

type StatisticsView struct {
	Count   int    `json:"count" yaml:"count"`
	Total   string `json:"total" yaml:"total"`
	Average string `json:"average" yaml:"average"`
	Max     string `json:"max" yaml:"max"`
	Min     string `json:"min" yaml:"min"`
}

type TotalView struct {
	Total      string `json:"total" yaml:"total"`
	TotalCents int64  `json:"total_cents" yaml:"total_cents"`
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Writer renders views in one format.
type Writer struct {
	out    io.Writer
	format Format
}

func NewWriter(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format}
}

// ExpenseRows numbers expenses starting at offset, their position in the
// full list.
func ExpenseRows(offset int, expenses []core.Expense) []ExpenseRow {
	rows := make([]ExpenseRow, len(expenses))
	for i, e := range expenses {
		rows[i] = ExpenseRow{
			Position:    offset + i,
			Ref:         e.Ref,
			Date:        e.Timestamp.Format(core.TimestampLayout),
			Category:    e.Category,
			Description: e.Description,
			Amount:      e.Amount.String(),
			AmountCents: e.Amount.Cents,
		}
	}
	return rows
}

// CategoryRows orders totals by amount, largest first; ties keep their
// first-seen order. Percentages are of total, rounded to one decimal.
func CategoryRows(totals []core.CategoryAmount, total core.Money) []CategoryRow {
	rows := make([]CategoryRow, len(totals))
	for i, c := range totals {
		pct := decimal.Zero
		if total.Cents > 0 {
			pct = decimal.NewFromInt(c.Amount.Cents).
				Mul(decimal.NewFromInt(100)).
				DivRound(decimal.NewFromInt(total.Cents), 1)
		}
		rows[i] = CategoryRow{
			Category:   c.Name,
			Total:      c.Amount.String(),
			TotalCents: c.Amount.Cents,
			Percentage: pct.StringFixed(1),
			Bar:        strings.Repeat("█", int(pct.IntPart()/2)),
		}
	}
	slices.SortStableFunc(rows, func(a, b CategoryRow) int {
		return cmp.Compare(b.TotalCents, a.TotalCents)
	})
	return rows
}

func (w *Writer) Expenses(expenses []core.Expense) error {
	return w.ExpensesFrom(0, expenses)
}

// ExpensesFrom renders a tail of the list whose first element sits at offset.
func (w *Writer) ExpensesFrom(offset int, expenses []core.Expense) error {
	rows := ExpenseRows(offset, expenses)
	if w.format != FormatTable {
		return w.encode(rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w.out, "No expenses recorded.")
		return err
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{strconv.Itoa(r.Position), r.Ref, r.Date, r.Category, r.Description, r.Amount}
	}
	return w.table([]string{"#", "REF", "DATE", "CATEGORY", "DESCRIPTION", "AMOUNT"}, cells)
}

func (w *Writer) Total(total core.Money) error {
	if w.format != FormatTable {
		return w.encode(TotalView{Total: total.String(), TotalCents: total.Cents})
	}
	_, err := fmt.Fprintf(w.out, "Total spent: $%s\n", total)
	return err
}

func (w *Writer) Categories(totals []core.CategoryAmount, total core.Money) error {
	rows := CategoryRows(totals, total)
	if w.format != FormatTable {
		return w.encode(rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w.out, "No expenses recorded.")
		return err
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.Category, r.Total, r.Percentage + "%", r.Bar}
	}
	return w.table([]string{"CATEGORY", "TOTAL", "SHARE", ""}, cells)
}

func (w *Writer) Statistics(st core.Statistics) error {
	view := StatisticsView{
		Count:   st.Count,
		Total:   st.Total.String(),
		Average: st.Average.String(),
		Max:     st.Max.String(),
		Min:     st.Min.String(),
	}
	if w.format != FormatTable {
		return w.encode(view)
	}
	return w.table([]string{"STATISTIC", "VALUE"}, [][]string{
		{"Total spent", view.Total},
		{"Expenses", strconv.Itoa(view.Count)},
		{"Average", view.Average},
		{"Largest", view.Max},
		{"Smallest", view.Min},
	})
}

func (w *Writer) table(headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w.out, t.Render())
	return err
}

func (w *Writer) encode(v any) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", w.format)
	}
}
