package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/invoiceapp/invoiceapp/internal/app"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
)

// ErrLedgerDrift is returned when at least one product disagrees with its ledger.
var ErrLedgerDrift = errors.New("ledger drift detected")

// LedgerVerifier replays product ledgers against stored stock.
type LedgerVerifier interface {
	VerifyLedger(ctx context.Context) ([]inventory.Drift, error)
}

func newLedgerCmd(opts Options) *cobra.Command {
	ledger := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the stock ledger",
	}
	var asJSON bool
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Replay every product ledger and report drift",
		Long: `verify replays each product's ledger entries and compares the result with
the stored stock. It exits non-zero when any product drifts or its entry chain
is broken. Nothing is repaired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			stores, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close()
			services := app.BuildServices(cfg, stores, nil, nil, logger)
			return runLedgerVerify(cmd.Context(), services.Inventory, cmd.OutOrStdout(), asJSON, logger)
		},
	}
	verify.Flags().BoolVar(&asJSON, "json", false, "print drift as JSON")
	ledger.AddCommand(verify)
	return ledger
}

func runLedgerVerify(ctx context.Context, verifier LedgerVerifier, out io.Writer, asJSON bool, logger *slog.Logger) error {
	drifts, err := verifier.VerifyLedger(ctx)
	if err != nil {
		return fmt.Errorf("ledger verify: %w", err)
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(drifts); err != nil {
			return err
		}
	} else if len(drifts) == 0 {
		fmt.Fprintln(out, "ledger consistent: no drift")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SKU\tPRODUCT\tSTORED\tLEDGER\tBROKEN CHAIN")
		for _, d := range drifts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\n", d.SKU, d.ProductID, d.Stored, d.FromLedger, d.BrokenChain)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(drifts) > 0 {
		if logger != nil {
			logger.Error("ledger drift detected", slog.Int("products", len(drifts)))
		}
		return fmt.Errorf("%w in %d product(s)", ErrLedgerDrift, len(drifts))
	}
	return nil
}
