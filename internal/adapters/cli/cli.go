// Package cli exposes the engine as a one-shot cobra command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"accounting-engine/internal/app"
	"accounting-engine/internal/logger"
)

var version = "1.0.0"

// Backend opens the store-backed pieces lazily, so that pure commands such as tax
// and journal validate run without a database.
type Backend struct {
	// Connect returns the service and a release func.
	Connect func(ctx context.Context) (app.ApplicationService, func(), error)
	// Migrate applies pending schema migrations and returns the applied file names.
	Migrate func(ctx context.Context) ([]string, error)
}

// NewRootCommand builds the command tree.
func NewRootCommand(backend Backend) *cobra.Command {
	root := &cobra.Command{
		Use:   "engine",
		Short: "Financial document lifecycle and ledger consistency engine",
		Long: `engine issues document numbers, computes taxes, validates journal entries
and maintains partner balances for a multi-tenant accounting store.

Store-backed commands read DATABASE_URL from the environment or a .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTaxCommand(),
		newJournalCommand(backend),
		newSequenceCommand(backend),
		newOnboardCommand(backend),
		newBalanceCommand(backend),
		newVerifyCommand(backend),
		newReportCommand(backend),
		newMigrateCommand(backend),
	)
	return root
}

// Execute runs the root command and reports failure through the logger.
func Execute(ctx context.Context, backend Backend, args []string) error {
	root := NewRootCommand(backend)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		log := logger.WithComponent("cli")
		log.Error().Err(err).Msg("command execution failed")
		return err
	}
	return nil
}

// withService connects, runs fn and releases the connection.
func withService(cmd *cobra.Command, backend Backend, fn func(svc app.ApplicationService) error) error {
	if backend.Connect == nil {
		return fmt.Errorf("command %q needs a database connection", cmd.Name())
	}
	svc, release, err := backend.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer release()
	return fn(svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
