package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/lovebooks/internal/config"
	"github.com/mrlokans/lovebooks/internal/entrypoint"
)

func newRepairCommand() *cobra.Command {
	var bookID string
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Rebuild chapter lists and drop orphaned chapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				if bookID != "" {
					book, err := app.Library.RebuildChapterIDs(ctx, bookID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "book %s has %d chapters\n", book.ID, len(book.ChapterIDs))
					return nil
				}
				report, err := app.Library.Reconcile(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&bookID, "book", "", "only rebuild this book's chapter list")
	return cmd
}

func newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, restore and prune backups",
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				n := keep
				if !cmd.Flags().Changed("keep") {
					n = app.Config.Retain
				}
				removed, err := app.Backups.Prune(ctx, n)
				for _, p := range removed {
					fmt.Fprintln(cmd.OutOrStdout(), "removed", p)
				}
				return err
			})
		},
	}
	prune.Flags().IntVar(&keep, "keep", 0, "number of backups to keep (default BACKUP_RETAIN)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Write a backup of the whole library",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
					info, err := app.Backups.Backup(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), info.Path)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List backups, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
					list, err := app.Backups.List(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tCREATED\tSIZE")
					for _, b := range list {
						fmt.Fprintf(tw, "%s\t%s\t%d\n", b.Name, b.CreatedAt.Format(time.DateTime), b.Size)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "restore <backup>",
			Short: "Replace the library with a backup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
					if err := app.Backups.Restore(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "restored", args[0])
					return nil
				})
			},
		},
		prune,
	)
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library size, disk usage and usage counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				st, err := app.Backups.Stats(ctx)
				if err != nil {
					return err
				}
				counters, err := app.Analytics.Snapshot(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"storage":   st,
					"analytics": counters,
				})
			})
		},
	}
}

func newCleanupAssetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-assets",
		Short: "Delete stored images no book or chapter refers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				removed, err := app.Backups.CleanupUnusedAssets(ctx)
				for _, p := range removed {
					fmt.Fprintln(cmd.OutOrStdout(), "removed", p)
				}
				return err
			})
		},
	}
}

func newDaemonCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled backups, background repairs and the inbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := entrypoint.New(config.NewConfig(), entrypoint.WithLogOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer app.Close()
			return entrypoint.Run(app, version)
		},
	}
}
