package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/amqp"
	"ledger/internal/cli"
)

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print ledger change events as JSON lines",
		Long: `Consume the ledger event queue and print one JSON object per
change until interrupted. Requires AMQP_URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}

			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
			if err != nil {
				return fmt.Errorf("connect to broker: %w", err)
			}
			defer client.Close()

			ctx, stop := cli.SignalContext(cmd.Context(), a.logger)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = client.ConsumeLedgerEvents(ctx, func(ev *amqp.LedgerEvent) error {
				return enc.Encode(ev)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
