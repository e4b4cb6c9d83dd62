// Package main runs the engine's fuzzer and reports crashes.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	platformcmd "github.com/baskuit/engine/internal/platform/cmd"
	"github.com/baskuit/engine/internal/platform/config"

	fuzzcmd "github.com/baskuit/engine/internal/cmd/fuzz"
)

func main() {
	cfg, err := fuzzcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceFuzz, func(ctx context.Context) error {
		return fuzzcmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	stop()
	config.Exit(err)
}
