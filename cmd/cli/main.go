package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/pipeforge/internal/app"
	"github.com/specialistvlad/pipeforge/internal/cli"
	"github.com/specialistvlad/pipeforge/internal/record"
)

// main is the entrypoint for the pipeforge application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	pipeforgeApp, err := app.NewApp(outW, appConfig)
	if err != nil {
		return err
	}
	defer pipeforgeApp.Close()

	// Ctrl-C cancels the run; terminal step results are still persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runRecord, err := pipeforgeApp.Execute(ctx)
	if err != nil {
		return err
	}
	if runRecord.Status != record.RunSuccessful {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf(
			"run %s finished %s: failed=%v aborted=%v",
			runRecord.ID, runRecord.Status, runRecord.Failed(), runRecord.Aborted())}
	}
	return nil
}
