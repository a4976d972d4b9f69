package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/core"
)

// expenseFlags are shared by add and edit.
type expenseFlags struct {
	date        string
	description string
	category    string
	amount      string
}

func (f *expenseFlags) register(cmd *cobra.Command, dateDefault string) {
	cmd.Flags().StringVar(&f.date, "date", dateDefault, "expense date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "what the money was spent on")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "one of: "+categoryList())
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "amount in INR, e.g. 12.50")
}

// apply overwrites fields of e whose flag was given (all of them when
// all is true).
func (f *expenseFlags) apply(cmd *cobra.Command, e core.Expense, all bool) (core.Expense, error) {
	changed := func(name string) bool { return all || cmd.Flags().Changed(name) }

	if changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return e, err
		}
		e.Date = d
	}
	if changed("description") {
		e.Description = f.description
	}
	if changed("category") {
		c, err := core.ParseCategory(f.category)
		if err != nil {
			return e, err
		}
		e.Category = c
	}
	if changed("amount") {
		v, err := core.ParseAmount(f.amount)
		if err != nil {
			return e, err
		}
		e.Amount = v
	}
	return e, nil
}

func categoryList() string {
	names := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		names = append(names, c.String())
	}
	return strings.Join(names, ", ")
}

func newAddCmd(a *app) *cobra.Command {
	var f expenseFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.apply(cmd, core.Expense{}, true)
			if err != nil {
				return err
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			id, err := svc.AddExpense(cmd.Context(), e)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expense added successfully! (#%d)\n", id)
			return nil
		},
	}
	f.register(cmd, core.Today().String())
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		month string
		year  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, optionally for one month",
		Long: `List expenses in ID order.

--month selects a month in every year unless --year is given or
LEDGER_MONTH_FILTER=year_month, which pins the current year.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := core.ParseMonthFilter(month)
			if err != nil {
				return err
			}
			if !filter.IsZero() && !filter.HasYear() {
				switch {
				case year != 0:
					filter = core.ForYearMonth(year, filter.Month)
				case a.cfg.YearAwareMonthFilter():
					filter = core.ForYearMonth(time.Now().Year(), filter.Month)
				}
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			records, err := svc.ListExpenses(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month filter: 03, 3 or 2024-03")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "restrict --month to this year")
	return cmd
}

func printRecords(out io.Writer, records []core.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No expenses recorded.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDate\tDescription\tCategory\tAmount\t")
	var total float64
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", r.ID, r.Date, r.Description, r.Category, core.FormatAmount(r.Amount))
		total += r.Amount
	}
	fmt.Fprintf(tw, "\t\t\tTotal\t%s\t\n", core.FormatAmount(total))
	return tw.Flush()
}

func parseIDArg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid expense id %q", s)
	}
	return id, nil
}

func newEditCmd(a *app) *cobra.Command {
	var f expenseFlags

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of an existing expense",
		Long:  "Only the given flags change; the rest keep their stored value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			current, err := svc.GetExpense(cmd.Context(), id)
			if err != nil {
				return err
			}
			e, err := f.apply(cmd, current.Expense, false)
			if err != nil {
				return err
			}
			if err := svc.EditExpense(cmd.Context(), id, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expense updated successfully! (#%d)\n", id)
			return nil
		},
	}
	f.register(cmd, "")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.DeleteExpense(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expense deleted successfully! (#%d)\n", id)
			return nil
		},
	}
}
