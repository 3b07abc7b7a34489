package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/dialogforge-backend/internal/app"
)

// Runs exactly one processing cycle and exits. Intended for cron.
func main() {
	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init app: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	report, err := a.Services.Worker.RunCycle(ctx)
	stop()
	if err != nil {
		a.Log.Error("Cycle failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Log.Info("Cycle finished", "report", report)
	a.Close()
}
