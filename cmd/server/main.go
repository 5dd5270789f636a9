package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/config"
	"github.com/rahul4469/speciessight/internal/crypto"
	"github.com/rahul4469/speciessight/internal/logger"
	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/services"
	"github.com/rahul4469/speciessight/migrations"
)

var (
	photoURL string

	rootCmd = &cobra.Command{
		Use:   "speciessight",
		Short: "Identify wildlife in photos and describe the species",
		Long: `SpeciesSight classifies the animal in a photo with a vision model and
asks a second model for a short field-guide description of it.

Running without a subcommand starts the web server.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  runMigrate,
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Print a new base64 ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE:  runKeygen,
	}

	classifyCmd = &cobra.Command{
		Use:   "classify",
		Short: "Classify and describe one photo, printing the result as JSON",
		RunE:  runClassify,
	}
)

func init() {
	classifyCmd.Flags().StringVar(&photoURL, "photo-url", "", "URL of the photo to classify")
	_ = classifyCmd.MarkFlagRequired("photo-url")

	rootCmd.AddCommand(serveCmd, migrateCmd, classifyCmd, keygenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the global logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	return run(cmd.Context(), cfg, log)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	db, err := models.NewDatabase(cmd.Context(), models.DefaultDatabaseConfig(cfg.Database.URL))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.MigrateFS(cmd.Context(), migrations.FS, "."); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	pipeline, err := newPipeline(cfg, nil, log)
	if err != nil {
		return err
	}

	result, err := pipeline.ClassifyAndDescribe(cmd.Context(), models.ClassificationRequest{PhotoURL: photoURL})
	if err != nil {
		if stage := services.StageOf(err); stage != "" {
			return fmt.Errorf("%s stage failed: %w", stage, err)
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// runKeygen prints a key for ENCRYPTION_KEY without loading configuration.
func runKeygen(cmd *cobra.Command, _ []string) error {
	key, err := crypto.GenerateKeyBase64()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
	return err
}
