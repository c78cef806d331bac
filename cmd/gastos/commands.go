package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gastos/internal/core"
	"gastos/internal/report"
)

func newMenuCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive text menu (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMenu(cmd)
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var category, description, amount string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new expense",
		Example: `  gastos add --category Comida --description "Almuerzo en restaurante" --amount 25.50
  gastos add -k Transporte -d "Uber al trabajo" -a 12,75`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			e, err := svc.Add(cmd.Context(), category, description, amount)
			if err != nil {
				return err
			}
			if a.output != report.FormatTable {
				return a.writer(cmd.OutOrStdout()).Expenses([]core.Expense{e})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expense saved: [%s] %s - $%s (ref %s)\n",
				e.Category, e.Description, e.Amount, e.Ref)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "k", "", "Expense category, e.g. "+strings.Join(core.DefaultCategories[:3], ", "))
	cmd.Flags().StringVarP(&description, "description", "d", "", "What the money was spent on")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount, '.' or ',' as decimal separator")
	for _, name := range []string{"category", "description", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses in the order they were recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			items, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			// Positions stay those of the full list so they can be passed to delete.
			rows := items
			offset := 0
			if recent > 0 && len(items) > recent {
				offset = len(items) - recent
				rows = items[offset:]
			}
			return a.writer(cmd.OutOrStdout()).ExpensesFrom(offset, rows)
		},
	}

	cmd.Flags().IntVarP(&recent, "recent", "n", 0, "Only show the last n expenses")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "delete [position]",
		Short: "Delete an expense by list position or reference",
		Example: `  gastos delete 0
  gastos delete --ref 20251019093000-0`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (ref == "") == (len(args) == 0) {
				return fmt.Errorf("provide either a position or --ref")
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			var removed core.Expense
			if ref != "" {
				removed, err = svc.DeleteRef(cmd.Context(), ref)
			} else {
				position, perr := strconv.Atoi(strings.TrimSpace(args[0]))
				if perr != nil {
					return &core.ValidationError{Field: core.FieldPosition, Reason: "must be an integer"}
				}
				removed, err = svc.Delete(cmd.Context(), position)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Expense deleted: [%s] %s - $%s\n",
				removed.Category, removed.Description, removed.Amount)
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "Reference shown by list")
	return cmd
}

func newTotalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Show the total spent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			total, err := svc.Total(cmd.Context())
			if err != nil {
				return err
			}
			return a.writer(cmd.OutOrStdout()).Total(total)
		},
	}
}

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show totals per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			totals, err := svc.TotalsByCategory(cmd.Context())
			if err != nil {
				return err
			}
			total, err := svc.Total(cmd.Context())
			if err != nil {
				return err
			}
			return a.writer(cmd.OutOrStdout()).Categories(totals, total)
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show total, count, average, largest and smallest expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			st, err := svc.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return a.writer(cmd.OutOrStdout()).Statistics(st)
		},
	}
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the expense store if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.service(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expense store ready: %s\n", a.location())
			return nil
		},
	}
}
