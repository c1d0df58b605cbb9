package server

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/skirmish/internal/platform/timeouts"
)

func contentPath(parts ...string) string {
	return filepath.Join(append([]string{"..", "..", "..", "content"}, parts...)...)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(flag.NewFlagSet("server", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8090" || cfg.FrameInterval != 16*time.Millisecond || cfg.DBPath != "data/results.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ReadHeaderTimeout != timeouts.ReadHeader || cfg.ShutdownTimeout != timeouts.Shutdown {
		t.Fatalf("timeouts = %v, %v", cfg.ReadHeaderTimeout, cfg.ShutdownTimeout)
	}
}

func TestParseConfigFlags(t *testing.T) {
	t.Setenv("SKIRMISH_HTTP_ADDR", "env:1")
	cfg, err := ParseConfig(flag.NewFlagSet("server", flag.ContinueOnError), []string{"-addr", "flag:2", "-any-origin"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "flag:2" || !cfg.AnyOrigin {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestNewHandlerServesBundledContent(t *testing.T) {
	handler, closeStore, err := newHandler(Config{
		Catalog:    contentPath("catalog.yaml"),
		Encounters: contentPath("encounters"),
		DBPath:     filepath.Join(t.TempDir(), "results.db"),
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	defer closeStore()

	srv := httptest.NewServer(handler)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/encounters")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := body["encounters"]; len(got) != 2 || got[0] != "ambush" || got[1] != "bridge" {
		t.Fatalf("encounters = %v", got)
	}
}

func TestNewHandlerRejectsMissingContent(t *testing.T) {
	_, _, err := newHandler(Config{
		Catalog:    filepath.Join(t.TempDir(), "missing.yaml"),
		Encounters: contentPath("encounters"),
	}, log.New(io.Discard, "", 0))
	if err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	if err := listenAndServe(ctx, srv, time.Second); err != nil {
		t.Fatalf("listen and serve: %v", err)
	}
}
