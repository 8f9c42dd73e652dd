// Package main provides the entry point for the reviewctl CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"review-hub-backend/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.ExitCode(cli.Execute(ctx))
	stop()
	os.Exit(code)
}
