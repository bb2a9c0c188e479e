// Package cli implements the lovebooks command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrlokans/lovebooks/internal/config"
	"github.com/mrlokans/lovebooks/internal/entrypoint"
	"github.com/mrlokans/lovebooks/internal/importers"
)

// NewRootCommand builds the lovebooks command tree. Configuration comes
// from the environment, see internal/config.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "lovebooks",
		Short:         "Keep books, chapters and comments in a local library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newVersionCommand(version),
		newSchemaCommand(),
		newBooksCommand(),
		newChaptersCommand(),
		newCommentsCommand(),
		newAssetsCommand(),
		newExportCommand(),
		newValidateCommand(),
		newImportCommand(),
		newRepairCommand(),
		newBackupCommand(),
		newStatsCommand(),
		newCleanupAssetsCommand(),
		newDaemonCommand(version),
	)
	return root
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "lovebooks", version)
		},
	}
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the export document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := importers.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

// withApp opens the application for the duration of fn. When the task
// queue is enabled, repairs needed after a failed rollback are queued for
// the daemon.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *entrypoint.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.NewConfig()
	app, err := entrypoint.New(cfg, entrypoint.WithLogOutput(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Tasks.Enabled {
		client, _, err := app.OpenTasks()
		if err != nil {
			app.Logger.Warn("task queue unavailable, repairs will not be queued", "error", err)
		} else {
			defer client.Close()
		}
	}

	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
