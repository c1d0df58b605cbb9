// Package main runs one encounter headless and prints the result.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	battlecmd "github.com/louisbranch/skirmish/internal/cmd/battle"
	"github.com/louisbranch/skirmish/internal/platform/config"
)

func main() {
	cfg, err := battlecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := battlecmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
