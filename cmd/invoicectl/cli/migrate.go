package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoiceapp/invoiceapp/internal/app"
	"github.com/invoiceapp/invoiceapp/internal/platform/db"
)

var migrateCommands = []string{"up", "down", "status", "version", "redo"}

func newMigrateCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down|status|version|redo>",
		Short:     "Run the embedded database migrations",
		Example:   "  invoicectl migrate up\n  invoicectl migrate status",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != app.StoreDriverPostgres {
				return fmt.Errorf("migrate: STORE_DRIVER is %q, migrations only apply to postgres", cfg.StoreDriver)
			}
			pool, err := db.New(cmd.Context(), cfg.PGDSN, db.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", args[0])
			return nil
		},
	}
}
