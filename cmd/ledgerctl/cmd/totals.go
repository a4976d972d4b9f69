package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/thresholds"
)

func newTotalsCmd(a *app) *cobra.Command {
	var (
		file      string
		overrides []string
	)

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Show spending per category against thresholds",
		Long: `Show the total spent per category and warn where a threshold is
exceeded. Thresholds default to 10000 per category; --thresholds loads a
YAML file and --limit overrides single categories for this run only.

Example:
  ledgerctl totals --thresholds limits.yaml --limit "Fixed Expense=25000"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = a.cfg.ThresholdsFile
			}
			limits, err := thresholds.Load(file)
			if err != nil {
				return err
			}
			for _, o := range overrides {
				if limits, err = applyLimit(limits, o); err != nil {
					return err
				}
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			totals, err := svc.TotalsByCategory(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := thresholds.Summarize(totals, limits)
			if len(summary) == 0 {
				fmt.Fprintln(out, "Nothing spent yet.")
				return nil
			}
			for _, st := range summary {
				fmt.Fprintln(out, st.Summary())
			}
			for _, st := range thresholds.Exceeded(summary) {
				fmt.Fprintln(out, "WARNING:", st.Warning())
			}
			fmt.Fprintf(out, "Grand total: %s\n", core.FormatAmount(core.GrandTotal(totals)))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "thresholds", "", "YAML thresholds file (default $THRESHOLDS_FILE)")
	cmd.Flags().StringArrayVar(&overrides, "limit", nil, "override one threshold, e.g. Hotel=5000 (repeatable)")
	return cmd
}

// applyLimit parses "Category=value".
func applyLimit(limits thresholds.Limits, s string) (thresholds.Limits, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok {
		return limits, fmt.Errorf("invalid --limit %q: want Category=value", s)
	}
	c, err := core.ParseCategory(name)
	if err != nil {
		return limits, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return limits, fmt.Errorf("invalid --limit %q: %w", s, err)
	}
	return limits.With(c, v), nil
}
