package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Statistics summarises a set of expenses. Every field is zero for an empty set.
type Statistics struct {
	Total   Money
	Count   int
	Average Money
	Max     Money
	Min     Money
}

func Total(expenses []Expense) Money {
	var total int64
	for _, e := range expenses {
		total += e.Amount.Cents
	}
	return Money{Cents: total}
}

// TotalsByCategory sums amounts per category. Categories appear in the order
// they are first seen.
func TotalsByCategory(expenses []Expense) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category})
		}
		out[i].Amount.Cents += e.Amount.Cents
	}
	return out
}

// CategoryMap is the map view of TotalsByCategory.
func CategoryMap(totals []CategoryAmount) map[string]Money {
	m := make(map[string]Money, len(totals))
	for _, c := range totals {
		m[c.Name] = c.Amount
	}
	return m
}

func ComputeStatistics(expenses []Expense) Statistics {
	if len(expenses) == 0 {
		return Statistics{}
	}
	st := Statistics{
		Count: len(expenses),
		Max:   expenses[0].Amount,
		Min:   expenses[0].Amount,
	}
	for _, e := range expenses {
		st.Total.Cents += e.Amount.Cents
		if e.Amount.Cents > st.Max.Cents {
			st.Max = e.Amount
		}
		if e.Amount.Cents < st.Min.Cents {
			st.Min = e.Amount
		}
	}
	avg := st.Total.Decimal().DivRound(decimal.NewFromInt(int64(st.Count)), 2)
	st.Average = Money{Cents: avg.Shift(2).IntPart()}
	return st
}
