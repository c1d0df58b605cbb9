// Package cmd holds the startup plumbing shared by skirmish commands: env
// and flag parsing, and a telemetry-wrapped run that traces the whole
// command.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/louisbranch/skirmish/internal/platform/config"
	"github.com/louisbranch/skirmish/internal/platform/otel"
)

const (
	tracerName         = "github.com/louisbranch/skirmish/internal/platform/cmd"
	telemetryFlushWait = 5 * time.Second
)

// Service names reported as service.name.
const (
	ServiceBattle = "skirmish-battle"
	ServiceServer = "skirmish-server"
)

// RunOptions tunes RunWithOptions.
type RunOptions struct {
	// FlushTimeout bounds the span flush after run returns.
	FlushTimeout time.Duration
	// Logger receives flush failures. Nil discards them.
	Logger *log.Logger
}

// ParseConfig loads SKIRMISH_* environment values into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs applies command-line flags over the environment values already
// bound to fs.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry runs a command under a root span, logging flush failures
// to the default logger.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	return RunWithOptions(ctx, service, RunOptions{Logger: log.Default()}, run)
}

// RunWithOptions sets up tracing for service, runs run inside a
// "command.run" span, and flushes spans before returning run's error.
func RunWithOptions(ctx context.Context, service string, opts RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return fmt.Errorf("service name is required")
	case run == nil:
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		wait := opts.FlushTimeout
		if wait <= 0 {
			wait = telemetryFlushWait
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Printf("%s: flush telemetry: %v", service, err)
		}
	}()

	ctx, span := otelapi.Tracer(tracerName).Start(ctx, "command.run")
	span.SetAttributes(attribute.String("skirmish.service", service))
	defer span.End()

	if err := run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
