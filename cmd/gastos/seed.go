package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type demoExpense struct {
	category    string
	description string
	amount      string
}

var demoExpenses = []demoExpense{
	{"Comida", "Desayuno en cafetería", "8.50"},
	{"Transporte", "Gasolina", "45.00"},
	{"Entretenimiento", "Netflix mensual", "12.99"},
	{"Salud", "Farmacia - Vitaminas", "22.50"},
	{"Comida", "Supermercado semanal", "85.30"},
	{"Transporte", "Uber al aeropuerto", "28.75"},
	{"Educación", "Libro de Python", "35.00"},
	{"Hogar", "Bombillas LED", "15.80"},
	{"Comida", "Cena restaurante", "42.00"},
	{"Servicios", "Internet mensual", "50.00"},
	{"Entretenimiento", "Cine con palomitas", "18.50"},
	{"Transporte", "Estacionamiento", "12.00"},
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Record a set of demo expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, d := range demoExpenses {
				e, err := svc.Add(ctx, d.category, d.description, d.amount)
				if err != nil {
					return fmt.Errorf("demo expense %d: %w", i+1, err)
				}
				fmt.Fprintf(out, "%2d. [%-15s] %-30s $%8s\n", i+1, e.Category, e.Description, e.Amount)
			}
			fmt.Fprintln(out)

			st, err := svc.Statistics(ctx)
			if err != nil {
				return err
			}
			if err := a.writer(out).Statistics(st); err != nil {
				return err
			}
			totals, err := svc.TotalsByCategory(ctx)
			if err != nil {
				return err
			}
			return a.writer(out).Categories(totals, st.Total)
		},
	}
}
