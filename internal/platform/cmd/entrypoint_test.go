package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
	"time"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigThenArgs(t *testing.T) {
	t.Setenv("SKIRMISH_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("SKIRMISH_CMD_TEST_MODE", "env-mode")

	var cfg testConfig
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")
	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("address = %q, want flag:9001", cfg.Address)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("mode = %q, want env-mode", cfg.Mode)
	}
}

func TestParseConfigRejectsNil(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected error for nil target")
	}
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected error for nil flag set")
	}
}

func TestRunWithTelemetry(t *testing.T) {
	t.Setenv("SKIRMISH_OTEL_ENDPOINT", "")

	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceBattle, nil); err == nil {
		t.Fatal("expected missing run function error")
	}

	boom := errors.New("boom")
	ran := false
	err := RunWithTelemetry(context.Background(), ServiceBattle, func(context.Context) error {
		ran = true
		return boom
	})
	if !ran || !errors.Is(err, boom) {
		t.Fatalf("ran = %v, err = %v", ran, err)
	}
}

func TestRunWithOptionsPassesContext(t *testing.T) {
	t.Setenv("SKIRMISH_OTEL_ENDPOINT", "")

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "battle")
	var got any
	err := RunWithOptions(ctx, ServiceServer, RunOptions{FlushTimeout: time.Second}, func(ctx context.Context) error {
		got = ctx.Value(key{})
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "battle" {
		t.Fatalf("context value = %v, want battle", got)
	}
}
