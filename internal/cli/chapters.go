package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrlokans/lovebooks/internal/entrypoint"
	"github.com/mrlokans/lovebooks/internal/services"
)

func newChaptersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters",
		Short: "Manage chapters of a book",
	}
	cmd.AddCommand(
		newChaptersListCommand(),
		newChaptersAddCommand(),
		newChaptersUpdateCommand(),
		newChaptersDeleteCommand(),
	)
	return cmd
}

func newChaptersListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <bookId>",
		Short: "List chapters of a book in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				chapters := app.Library.GetChaptersByBook(ctx, args[0])
				if asJSON {
					return printJSON(cmd.OutOrStdout(), chapters)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ORDER\tID\tTITLE\tIMAGES")
				for _, c := range chapters {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", c.Order, c.ID, c.Title, len(c.Images))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newChaptersAddCommand() *cobra.Command {
	var in services.ChapterInput
	cmd := &cobra.Command{
		Use:   "add <bookId>",
		Short: "Add a chapter to a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.BookID = args[0]
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				ch, err := app.Library.CreateChapter(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ch)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "chapter title")
	cmd.Flags().StringVarP(&in.Content, "content", "c", "", "chapter text")
	cmd.Flags().IntVar(&in.Order, "order", 0, "position in the book; 0 appends")
	cmd.Flags().StringSliceVar(&in.Images, "image", nil, "image asset reference, repeatable")
	return cmd
}

func newChaptersUpdateCommand() *cobra.Command {
	var title, content string
	var images []string
	var order int
	cmd := &cobra.Command{
		Use:   "update <chapterId>",
		Short: "Update chapter fields; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch services.ChapterPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("content") {
				patch.Content = &content
			}
			if flags.Changed("image") {
				patch.Images = &images
			}
			if flags.Changed("order") {
				patch.Order = &order
			}
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				ch, err := app.Library.UpdateChapter(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ch)
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "chapter title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "chapter text")
	cmd.Flags().IntVar(&order, "order", 0, "position in the book")
	cmd.Flags().StringSliceVar(&images, "image", nil, "image asset references, replaces the list")
	return cmd
}

func newChaptersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chapterId>",
		Short: "Delete a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				if err := app.Library.DeleteChapter(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
				return nil
			})
		},
	}
}
