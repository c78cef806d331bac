package core

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the layout of the fecha column.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultCategories are offered as suggestions when adding an expense. Any
// non-empty category is accepted.
var DefaultCategories = []string{
	"Comida", "Transporte", "Entretenimiento", "Salud",
	"Educación", "Servicios", "Hogar", "Otros",
}

// refLayout is the timestamp part of an expense reference.
const refLayout = "20060102150405"

type (
	Money struct {
		Cents int64
	}

	Expense struct {
		Timestamp   time.Time
		Category    string
		Description string
		Amount      Money

		// Ref is assigned when records are read back; it is not persisted.
		Ref string
	}
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return &ValidationError{Field: FieldAmount, Reason: "must be greater than 0"}
	}
	if m.Cents > MaxAmount.Cents {
		return &ValidationError{Field: FieldAmount, Reason: "is too large"}
	}
	return nil
}

// NewExpense trims the text fields and truncates the timestamp to seconds.
func NewExpense(ts time.Time, category, description string, amount Money) Expense {
	return Expense{
		Timestamp:   ts.Truncate(time.Second),
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Amount:      amount,
	}
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return &ValidationError{Field: FieldCategory, Reason: "cannot be empty"}
	}
	if strings.TrimSpace(e.Description) == "" {
		return &ValidationError{Field: FieldDescription, Reason: "cannot be empty"}
	}
	return e.Amount.Validate()
}

// AssignRefs sets Ref on every expense in place. The sequence number counts
// earlier records sharing the same second, so appending never changes the
// reference of an existing record.
func AssignRefs(expenses []Expense) {
	seen := make(map[string]int, len(expenses))
	for i := range expenses {
		key := expenses[i].Timestamp.Format(refLayout)
		expenses[i].Ref = fmt.Sprintf("%s-%d", key, seen[key])
		seen[key]++
	}
}
