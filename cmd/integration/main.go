// Package main runs the engine against the reference simulator in lockstep.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	platformcmd "github.com/baskuit/engine/internal/platform/cmd"
	"github.com/baskuit/engine/internal/platform/config"

	integrationcmd "github.com/baskuit/engine/internal/cmd/integration"
)

func main() {
	cfg, err := integrationcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceIntegration, func(ctx context.Context) error {
		return integrationcmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	stop()
	config.Exit(err)
}
