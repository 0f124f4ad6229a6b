// Command docctl is the operator CLI for the document lifecycle service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/OsmanWais29/filesecureai-sub002/internal/bootstrap"
	"github.com/OsmanWais29/filesecureai-sub002/internal/config"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/repository/postgres"
	"github.com/OsmanWais29/filesecureai-sub002/internal/observability/logging"
)

var (
	configFile string
	envFile    string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "docctl",
	Short:         "Document lifecycle operator tool",
	Long:          "Operator CLI for migrations, version history, the offline cache and URL resolution.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
		} else {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()
		}

		path := configFile
		if path == "" {
			path = os.Getenv("CONFIG_FILE")
		}
		loaded, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(logging.NewJSONLogger("docctl", cfg.LogLevel))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		if err := postgres.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config overlay (defaults to $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading configuration")
	rootCmd.AddCommand(migrateCmd, versionsCmd, cacheCmd, resolveCmd)
}

// withApp runs fn against a fully wired application without the HTTP surface.
func withApp(ctx context.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	appCfg := cfg
	appCfg.MigrateOnStart = false
	app, err := bootstrap.New(ctx, appCfg, bootstrap.Options{Service: "docctl", Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, app)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "docctl:", err)
		stop()
		os.Exit(1)
	}
}
