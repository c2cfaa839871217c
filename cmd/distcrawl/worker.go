package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run one crawl for this worker's identity and report the results",
		Long: `Fetches the seed list assigned to WORKER_ID, crawls it with the site profile
bound to that identity, and posts the outcome batch to the orchestrator.`,
		Args: cobra.NoArgs,
		RunE: runWorkerCommand,
	}
}

func runWorkerCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer appInstance.Close()

	runner, err := appInstance.Worker()
	if err != nil {
		return err
	}

	result := runner.Run(cmd.Context())
	succeeded, failed := result.Batch.Counts()
	appInstance.Logger().Info("worker run finished",
		zap.String("result", result.Outcome),
		zap.Int("seeds", result.Seeds),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("report_attempts", result.Attempts),
	)
	if result.Outcome != worker.ResultReported {
		return fmt.Errorf("worker run ended without delivering a batch: %s", result.Outcome)
	}
	return nil
}
