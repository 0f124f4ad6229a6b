package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsmanWais29/filesecureai-sub002/internal/bootstrap"
)

var listObjects bool

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Inspect and manage document version history",
}

var versionsListCmd = &cobra.Command{
	Use:   "list <document-id>",
	Short: "List the versions of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			history, err := app.VersionManager.GetHistory(ctx, args[0])
			if err != nil {
				return err
			}
			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(out, "VERSION\tCURRENT\tID\tSIZE\tCREATED\tPATH\tNOTE")
			for _, v := range history {
				current := ""
				if v.IsCurrent {
					current = "*"
				}
				fmt.Fprintf(out, "v%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
					v.VersionNumber, current, v.ID, v.Size, v.CreatedAt.Format(time.RFC3339), v.StoragePath, v.ChangeNote)
			}
			if err := out.Flush(); err != nil {
				return err
			}
			if !listObjects {
				return nil
			}

			doc, err := app.Documents.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			objects, err := app.Storage.ListObjects(ctx, doc.OwnerID+"/"+doc.ID+"/versions")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			out = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(out, "OBJECT\tSIZE\tUPDATED")
			for _, obj := range objects {
				fmt.Fprintf(out, "%s\t%d\t%s\n", obj.Path, obj.Size, obj.UpdatedAt.Format(time.RFC3339))
			}
			return out.Flush()
		})
	},
}

var versionsSwitchCmd = &cobra.Command{
	Use:   "switch <document-id> <version-id>",
	Short: "Make a version the current one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			if err := app.VersionManager.SwitchTo(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %s now points at version %s\n", args[0], args[1])
			return nil
		})
	},
}

var versionsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id> <version-id>",
	Short: "Delete a non-current version and its stored bytes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			if err := app.VersionManager.DeleteVersion(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %s of document %s deleted\n", args[1], args[0])
			return nil
		})
	},
}

func init() {
	versionsListCmd.Flags().BoolVar(&listObjects, "objects", false, "also list stored version objects")
	versionsCmd.AddCommand(versionsListCmd, versionsSwitchCmd, versionsDeleteCmd)
}
