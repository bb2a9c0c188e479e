package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/entrypoint"
	"github.com/mrlokans/lovebooks/internal/services"
)

func newCommentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Add and list comments",
	}
	cmd.AddCommand(newCommentsAddCommand(), newCommentsListCommand())
	return cmd
}

func newCommentsAddCommand() *cobra.Command {
	var in services.CommentInput
	cmd := &cobra.Command{
		Use:   "add <bookId>",
		Short: "Comment on a book or one of its chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.BookID = args[0]
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				c, err := app.Library.AddComment(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
	cmd.Flags().StringVar(&in.ChapterID, "chapter", "", "chapter id")
	cmd.Flags().StringVar(&in.UserID, "user", "local", "commenting user id")
	cmd.Flags().StringVarP(&in.Text, "text", "m", "", "comment text")
	return cmd
}

func newCommentsListCommand() *cobra.Command {
	var chapterID string
	var all, asJSON bool
	cmd := &cobra.Command{
		Use:   "list <bookId>",
		Short: "List comments, oldest first",
		Long: "List the comments on a book. Without flags only comments on the book\n" +
			"itself are shown; --chapter selects one chapter and --all shows everything.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				var comments []entities.Comment
				if all {
					comments = app.Library.ListCommentsByBook(ctx, args[0])
				} else {
					comments = app.Library.ListComments(ctx, args[0], chapterID)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), comments)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CREATED\tUSER\tCHAPTER\tTEXT")
				for _, c := range comments {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						time.UnixMilli(c.CreatedAt).Format(time.DateTime), c.UserID, c.ChapterID, c.Text)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&chapterID, "chapter", "", "only comments on this chapter")
	cmd.Flags().BoolVar(&all, "all", false, "comments on the book and all its chapters")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
