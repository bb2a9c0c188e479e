package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/lovebooks/internal/entrypoint"
	"github.com/mrlokans/lovebooks/internal/importers"
)

func newAssetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage stored images",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <image>",
		Short: "Copy a jpg or png into the asset store and print its reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				ref, err := app.Assets.Ingest(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ref)
				return nil
			})
		},
	})
	return cmd
}

func newExportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <bookId>",
		Short: "Export a book with its chapters and images to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				doc, err := app.Exporter.Export(ctx, args[0])
				if err != nil {
					return err
				}
				var path string
				if out != "" {
					path, err = app.Writer.WriteTo(out, doc)
				} else {
					path, err = app.Writer.Write(doc)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: export directory)")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a file is an importable export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := importers.Decode(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %q with %d chapters\n", doc.Book.Title, len(doc.Chapters))
			return nil
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import an export document as a new book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				res, err := app.Importer.ImportFile(ctx, args[0])
				if errors.Is(err, importers.ErrMalformedDocument) {
					return fmt.Errorf("%s is not a valid export: %w", args[0], err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported book %s (%d chapters, %d assets)\n",
					res.BookID, len(res.ChapterIDs), res.Assets)
				return nil
			})
		},
	}
}
