package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"filepub/internal/config"
	"filepub/internal/logging"
	"filepub/internal/metadata"
	"filepub/internal/rabbit"
	"filepub/internal/runner"
	"filepub/internal/utils"
	"filepub/internal/watcher"
	"filepub/pkg/models"
)

var (
	rootPath       string
	rabbitHost     string
	rabbitPort     int
	rabbitUser     string
	rabbitPassword string
	rabbitVhost    string
	queueName      string
	dryRun         bool
	logLevel       string
	watchMode      bool
	consumeMode    bool
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "filepub",
		Short: "Recursively scan a directory and publish file metadata to RabbitMQ",
		Long:  "Walks a directory tree, converts each file's metadata into a JSON record and publishes it to a durable RabbitMQ queue for downstream consumers",
		Run:   runApp,
	}

	rootCmd.Flags().StringVar(&rootPath, "root", "", "Root directory to scan")
	rootCmd.Flags().StringVar(&rabbitHost, "rabbit-host", config.DefaultHost, "RabbitMQ host (env: RABBITMQ_HOST)")
	rootCmd.Flags().IntVar(&rabbitPort, "rabbit-port", config.DefaultPort, "RabbitMQ port (env: RABBITMQ_PORT)")
	rootCmd.Flags().StringVar(&rabbitUser, "rabbit-user", config.DefaultUser, "RabbitMQ username (env: RABBITMQ_USER)")
	rootCmd.Flags().StringVar(&rabbitPassword, "rabbit-password", config.DefaultPassword, "RabbitMQ password (env: RABBITMQ_PASSWORD)")
	rootCmd.Flags().StringVar(&rabbitVhost, "rabbit-vhost", config.DefaultVirtualHost, "RabbitMQ virtual host (env: RABBITMQ_VHOST)")
	rootCmd.Flags().StringVar(&queueName, "queue", config.DefaultQueue, "Queue name (env: RABBITMQ_QUEUE)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan and log records without publishing to RabbitMQ")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&watchMode, "watch-mode", false, "Keep running and publish records as files change")
	rootCmd.Flags().BoolVar(&consumeMode, "consume", false, "Consume records from the queue and print them")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}
}

func runApp(cmd *cobra.Command, args []string) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}
	logger := logging.New(os.Stderr, level)

	if watchMode && consumeMode {
		fmt.Fprintf(os.Stderr, "Error: --watch-mode and --consume cannot be combined\n")
		printUsageExamples()
		os.Exit(exitFailure)
	}

	// Only values the user actually passed override the environment;
	// an explicitly passed zero or empty string is honored as-is.
	overrides := config.Overrides{
		Host:        config.StringOverride{Value: rabbitHost, Set: cmd.Flags().Changed("rabbit-host")},
		Port:        config.IntOverride{Value: rabbitPort, Set: cmd.Flags().Changed("rabbit-port")},
		Username:    config.StringOverride{Value: rabbitUser, Set: cmd.Flags().Changed("rabbit-user")},
		Password:    config.StringOverride{Value: rabbitPassword, Set: cmd.Flags().Changed("rabbit-password")},
		VirtualHost: config.StringOverride{Value: rabbitVhost, Set: cmd.Flags().Changed("rabbit-vhost")},
		Queue:       config.StringOverride{Value: queueName, Set: cmd.Flags().Changed("queue")},
	}
	cfg, err := config.Resolve(overrides)
	if err != nil {
		logger.Errorf("invalid configuration: %v", err)
		os.Exit(exitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch {
	case consumeMode:
		code = runConsume(ctx, cfg, logger)
	case watchMode:
		code = runWatch(ctx, cfg, logger)
	default:
		code = runScan(ctx, cfg, logger)
	}
	stop()
	os.Exit(code)
}

func printUsageExamples() {
	fmt.Fprintf(os.Stderr, `
Usage Examples:
===============

1. Scan a tree and publish every file's metadata:
   %s --root /path/to/scan

2. Dry run (no broker needed):
   %s --root /path/to/scan --dry-run

3. Keep watching for changes and publish as they happen:
   %s --root /path/to/scan --watch-mode

4. Print records arriving on the queue:
   %s --consume --queue file_events

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func validateRoot(logger *logging.Logger) bool {
	if err := utils.ValidatePath(rootPath); err != nil {
		logger.Errorf("--root is required: %v", err)
		printUsageExamples()
		return false
	}
	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		logger.Errorf("root path does not exist: %s", rootPath)
		return false
	}
	if !utils.IsDirectory(rootPath) {
		logger.Errorf("root path is not a directory: %s", rootPath)
		return false
	}
	return true
}

func runScan(ctx context.Context, cfg config.Config, logger *logging.Logger) int {
	logger.Infof("starting recursive file publisher")
	logger.Infof("root directory: %s", rootPath)
	logger.Infof("dry run mode: %v", dryRun)

	if !validateRoot(logger) {
		return exitFailure
	}

	var pub runner.Publisher
	if !dryRun {
		client := rabbit.NewClient(cfg, logger)
		if err := client.Connect(); err != nil {
			logger.Errorf("failed to connect to RabbitMQ: %v", err)
			return exitFailure
		}
		defer client.Close()
		pub = client
	}

	sum, err := runner.Run(ctx, runner.Options{
		Root:      rootPath,
		DryRun:    dryRun,
		Publisher: pub,
		Log:       logger,
	})
	switch {
	case errors.Is(err, runner.ErrInterrupted):
		logger.Warnf("interrupted by user")
		return exitInterrupted
	case err != nil:
		logger.Errorf("fatal error during scan: %v", err)
		return exitFailure
	}

	logger.Infof("files processed: %d", sum.Processed)
	logger.Infof("errors encountered: %d", sum.Errored)
	if sum.Errored > 0 {
		return exitFailure
	}
	return exitOK
}

func runWatch(ctx context.Context, cfg config.Config, logger *logging.Logger) int {
	logger.Infof("starting watch mode on %s", rootPath)

	if !validateRoot(logger) {
		return exitFailure
	}

	var pub runner.Publisher
	if !dryRun {
		client := rabbit.NewClient(cfg, logger)
		if err := client.Connect(); err != nil {
			logger.Errorf("failed to connect to RabbitMQ: %v", err)
			return exitFailure
		}
		defer client.Close()
		pub = client
	}

	w, err := watcher.NewWatcher(logger)
	if err != nil {
		logger.Errorf("failed to create watcher: %v", err)
		return exitFailure
	}
	defer w.Close()

	if err := w.AddWatch(rootPath); err != nil {
		logger.Errorf("failed to watch %s: %v", rootPath, err)
		return exitFailure
	}
	w.Start()

	logger.Infof("watching for changes, press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			logger.Infof("shutting down watch mode")
			return exitOK

		case event := <-w.Changes():
			if event.Operation == "DELETE" {
				logger.Debugf("file removed: %s", event.Path)
				continue
			}
			record, err := metadata.Extract(event.Path)
			if err != nil {
				logger.Errorf("error processing %s: %v", event.Path, err)
				continue
			}
			if dryRun {
				logger.Infof("[dry-run] would publish: %+v", record)
				continue
			}
			if err := pub.Publish(record, rabbit.DefaultMaxAttempts); err != nil {
				logger.Errorf("error processing %s: %v", event.Path, err)
			}

		case err := <-w.Errors():
			logger.Warnf("watcher error: %v", err)
		}
	}
}

func runConsume(ctx context.Context, cfg config.Config, logger *logging.Logger) int {
	client := rabbit.NewClient(cfg, logger)
	if err := client.Connect(); err != nil {
		logger.Errorf("failed to connect to RabbitMQ: %v", err)
		return exitFailure
	}
	defer client.Close()

	err := client.Consume(ctx, func(record models.FileRecord) error {
		logger.Infof("received file metadata:")
		logger.Infof("  path: %s", record.Path)
		logger.Infof("  name: %s", record.Name)
		logger.Infof("  size: %d bytes", record.SizeBytes)
		logger.Infof("  modified: %s", record.ModifiedTS)
		return nil
	})
	if err != nil {
		logger.Errorf("consumer stopped: %v", err)
		return exitFailure
	}
	return exitOK
}
