package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/lovebooks/internal/entrypoint"
	"github.com/mrlokans/lovebooks/internal/services"
)

func newBooksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage books",
	}
	cmd.AddCommand(
		newBooksListCommand(),
		newBooksShowCommand(),
		newBooksCreateCommand(),
		newBooksUpdateCommand(),
		newBooksDeleteCommand(),
		newBooksReadCommand(),
	)
	return cmd
}

func newBooksListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				books := app.Library.GetAllBooks(ctx)
				if asJSON {
					return printJSON(cmd.OutOrStdout(), books)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tCHAPTERS\tUPDATED")
				for _, b := range books {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, b.Title, len(b.ChapterIDs),
						time.UnixMilli(b.UpdatedAt).Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newBooksShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <bookId>",
		Short: "Show a book with its chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				book, err := app.Library.GetBook(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"book":     book,
					"chapters": app.Library.GetChaptersByBook(ctx, book.ID),
				})
			})
		},
	}
}

func newBooksCreateCommand() *cobra.Command {
	var in services.BookInput
	var rating float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("rating") {
				in.Rating = &rating
			}
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				book, err := app.Library.CreateBook(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), book)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "book title")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "book description")
	cmd.Flags().StringVar(&in.AuthorID, "author", "local", "author user id")
	cmd.Flags().StringVar(&in.CoverImage, "cover", "", "cover asset reference (see 'assets add')")
	cmd.Flags().Float64Var(&rating, "rating", 0, "rating from 0 to 5")
	return cmd
}

func newBooksUpdateCommand() *cobra.Command {
	var title, description, cover string
	var rating float64
	cmd := &cobra.Command{
		Use:   "update <bookId>",
		Short: "Update book fields; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch services.BookPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("cover") {
				patch.CoverImage = &cover
			}
			if flags.Changed("rating") {
				patch.Rating = &rating
			}
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				book, err := app.Library.UpdateBook(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), book)
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "book title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "book description")
	cmd.Flags().StringVar(&cover, "cover", "", "cover asset reference")
	cmd.Flags().Float64Var(&rating, "rating", 0, "rating from 0 to 5")
	return cmd
}

func newBooksDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <bookId>",
		Short: "Delete a book and its chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				if err := app.Library.DeleteBook(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
				return nil
			})
		},
	}
}

func newBooksReadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read <bookId>",
		Short: "Record that a book was read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				book, err := app.Library.MarkRead(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), book)
			})
		},
	}
}
