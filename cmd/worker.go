package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/newsagent/internal/app"
	"github.com/koopa0/newsagent/internal/rpc"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume questions from the queue and answer them",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	worker := rpc.NewWorker(cfg.BrokerURL, cfg.RequestQueue, cfg.ResponseQueue, application.Orchestrator, logger)
	logger.Info("worker starting", "queue", cfg.RequestQueue)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
