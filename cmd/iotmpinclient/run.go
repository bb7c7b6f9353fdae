package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "authenticate, connect to the broker, and dispatch messages until interrupted",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	runID := uuid.New().String()

	client, _, err := newClient(&loggingSink{log: log, runID: runID})
	if err != nil {
		return err
	}

	if err := client.StartSession(); err != nil {
		return err
	}
	defer client.EndSession()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := client.ListenForPrivateMessages(ctx); err != nil {
		return err
	}

	log.Info("session started, entering message loop", "run_id", runID)
	for ctx.Err() == nil {
		client.RunMessageLoop(time.Second)
	}
	log.Info("shutting down", "run_id", runID)
	return nil
}
