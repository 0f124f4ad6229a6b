package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OsmanWais29/filesecureai-sub002/internal/bootstrap"
	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

var (
	resolveToken  string
	resolveOutput string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <document-id>",
	Short: "Resolve a usable URL for a document through the tier fallback chain",
	Long: `Resolves the current version of a document trying the signed URL, the
public URL and the viewer tier in order, falling back to the offline cache.

With --output the bytes are downloaded to the given file instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			doc, err := app.Documents.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			ref := domain.StorageRef{DocumentID: doc.ID, Path: doc.StoragePath, ContentType: doc.MimeType}
			creds := domain.Credentials{OwnerID: doc.OwnerID, Token: resolveToken}

			if resolveOutput == "" {
				resolution, err := app.Retriever.Resolve(ctx, ref, creds)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resolution)
			}

			resolution, err := app.Retriever.Download(ctx, ref, creds)
			if err != nil {
				return err
			}
			if err := os.WriteFile(resolveOutput, resolution.Content, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes from %s tier to %s\n", len(resolution.Content), resolution.Tier, resolveOutput)
			return nil
		})
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveToken, "token", "", "bearer token for the signed URL tier")
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "", "download content to this file")
}
