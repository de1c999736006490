// Package cli implements the invoicectl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/invoiceapp/invoiceapp/internal/app"
)

var version = "dev"

// Options carries the process streams and the config loader.
type Options struct {
	Stdout     io.Writer
	Stderr     io.Writer
	LoadConfig func() (*app.Config, error)
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.LoadConfig == nil {
		o.LoadConfig = app.LoadConfig
	}
	return o
}

// NewRootCmd builds the invoicectl command tree.
func NewRootCmd(opts Options) *cobra.Command {
	opts = opts.withDefaults()
	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Operate the invoicing and stock ledger service",
		Long: `invoicectl runs database migrations, verifies the stock ledger and
enqueues background jobs. Configuration is read from the environment and an
optional .env file, the same way the API and the worker read it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.AddCommand(newMigrateCmd(opts), newLedgerCmd(opts), newJobsCmd(opts), newSeedCmd(opts))
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root := NewRootCmd(Options{})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "invoicectl: %v\n", err)
		return 1
	}
	return 0
}
