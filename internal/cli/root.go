// Package cli provides the command-line interface for circles.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Omashka/circles-sub001/internal/ai"
	"github.com/Omashka/circles-sub001/internal/config"
	"github.com/Omashka/circles-sub001/internal/metrics"
	"github.com/Omashka/circles-sub001/internal/queue"
	"github.com/Omashka/circles-sub001/internal/service"
	"github.com/Omashka/circles-sub001/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Global dependencies, built once in PersistentPreRunE.
	cfg        config.Config
	contacts   *store.SurrealStore
	svc        *service.Service
	opQueue    *queue.Queue
	collector  *metrics.Collector
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "circles",
	Short: "Relationship notes with AI summarization",
	Long: `Circles keeps track of the people in your life: capture voice notes,
import screenshots of conversations, and let the AI extract interests,
dates, and details into each contact's profile.

Notes that fail to process are queued durably and replayed later.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Version and help need no dependencies.
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.LoadWithFile(configPath)
		if err != nil {
			return err
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		logCleanup = cleanup

		ctx := context.Background()
		contacts, err = store.NewSurrealStore(ctx, store.SurrealConfig{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to contact store: %w", err)
		}

		collector = metrics.NewCollector()
		gateway := ai.New(cfg, logger, collector)
		svc = service.New(contacts, gateway, logger)

		// The queue survives a missing store file; it does not survive
		// a missing store silently, so the degradation is reported.
		var qstore queue.Store
		qstore, err = queue.OpenSQLite(cfg.QueuePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: queue persistence unavailable (%v), operating in memory\n", err)
			qstore = nil
		}
		opQueue, err = queue.New(qstore, gateway, svc, logger, collector)
		if err != nil {
			return fmt.Errorf("load operation queue: %w", err)
		}
		svc.AttachQueue(opQueue)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if opQueue != nil {
			if err := opQueue.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close queue: %v\n", err)
			}
		}
		if contacts != nil {
			if err := contacts.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close contact store: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(contactCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(screenshotCmd)
	rootCmd.AddCommand(giftsCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(inboxCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
