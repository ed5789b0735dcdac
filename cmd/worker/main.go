package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/herogram/herogram/internal/config"
	"github.com/herogram/herogram/internal/database"
	"github.com/herogram/herogram/internal/email"
	"github.com/herogram/herogram/internal/logger"
	"github.com/herogram/herogram/internal/repository"
	"github.com/herogram/herogram/internal/service"
	"github.com/herogram/herogram/internal/storage"
)

var (
	flagBatchSize int
	flagDryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Email delivery queue worker for Herogram",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of pending email deliveries",
	RunE:  runProcess,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show delivery queue statistics",
	RunE:  runStats,
}

func init() {
	runCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "override the configured batch size")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "log what would be sent without sending")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runProcess executes one queue pass. Individual delivery failures are
// recorded in the store and do not affect the exit code; only invocation
// errors (config, database, transport setup) do.
func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	store, err := storage.NewLocalStore(cfg.Storage.BasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize avatar storage: %w", err)
	}

	opts := service.ProcessorOptions{
		BatchSize: cfg.Queue.BatchSize,
		DryRun:    cfg.Queue.DryRun || flagDryRun,
	}
	if flagBatchSize > 0 {
		opts.BatchSize = flagBatchSize
	}

	var sender email.Sender
	if !opts.DryRun {
		sender, err = email.NewSender(ctx, cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to initialize email transport: %w", err)
		}
	}

	// The sent cache is an optimization; run without it if Redis is down
	var cache *service.SentCache
	if rdb, err := database.NewRedis(cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, continuing without sent cache")
	} else {
		defer rdb.Close()
		cache = service.NewSentCache(rdb, cfg.Redis.SentTTL)
	}

	deliveryRepo := repository.NewDeliveryRepository(db, cfg.Queue.MaxRetries, cfg.Queue.BackoffBase)
	composer := email.NewComposer("", "", "")
	processor := service.NewProcessor(deliveryRepo, store, composer, sender, cache, log, opts)

	summary, err := processor.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Processed: %d\nSent: %d\nFailed: %d\nRetried: %d\nSkipped: %d\n",
		summary.Processed, summary.Sent, summary.Failed, summary.Retried, summary.Skipped)
	if opts.DryRun {
		fmt.Printf("Would send: %d\n", summary.WouldSend)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deliveryRepo := repository.NewDeliveryRepository(db, cfg.Queue.MaxRetries, cfg.Queue.BackoffBase)
	stats, err := deliveryRepo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Printf("Total:      %d\n", stats.Total)
	fmt.Printf("Pending:    %d\n", stats.Pending)
	fmt.Printf("Sending:    %d\n", stats.Sending)
	fmt.Printf("Sent:       %d\n", stats.Sent)
	fmt.Printf("Failed:     %d\n", stats.Failed)
	fmt.Printf("Retrying:   %d\n", stats.Retrying)
	fmt.Printf("Avg tries:  %.2f\n", stats.AverageRetries)
	fmt.Printf("Success:    %.1f%%\n", stats.SuccessRate)
	return nil
}
