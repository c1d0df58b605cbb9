// Package server parses server command flags and hosts battles over websockets.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/skirmish/internal/battle/catalog"
	"github.com/louisbranch/skirmish/internal/battle/encounter"
	"github.com/louisbranch/skirmish/internal/battle/storage"
	"github.com/louisbranch/skirmish/internal/battle/storage/sqlite"
	"github.com/louisbranch/skirmish/internal/battle/transport/ws"
	entrypoint "github.com/louisbranch/skirmish/internal/platform/cmd"
	"github.com/louisbranch/skirmish/internal/platform/timeouts"
)

// Config holds server command configuration.
type Config struct {
	Addr              string        `env:"HTTP_ADDR"           envDefault:"localhost:8090"`
	Catalog           string        `env:"CATALOG"             envDefault:"content/catalog.yaml"`
	Encounters        string        `env:"ENCOUNTERS"          envDefault:"content/encounters"`
	DBPath            string        `env:"DB_PATH"             envDefault:"data/results.db"`
	Think             time.Duration `env:"THINK"               envDefault:"600ms"`
	FrameInterval     time.Duration `env:"FRAME_INTERVAL"      envDefault:"16ms"`
	AnyOrigin         bool          `env:"ANY_ORIGIN"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT"`
	Verbose           bool          `env:"VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Catalog, "catalog", cfg.Catalog, "path to the squad catalog yaml")
	fs.StringVar(&cfg.Encounters, "encounters", cfg.Encounters, "directory of encounter lua files")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite result database path (empty disables storage)")
	fs.DurationVar(&cfg.Think, "think", cfg.Think, "how long scripted squads think before acting")
	fs.DurationVar(&cfg.FrameInterval, "frame-interval", cfg.FrameInterval, "battle loop frame interval")
	fs.BoolVar(&cfg.AnyOrigin, "any-origin", cfg.AnyOrigin, "accept websocket upgrades from any origin")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log session messages and battle transitions")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}
	return cfg, nil
}

// Run serves battles until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		handler, closeStore, err := newHandler(cfg, log.Default())
		if err != nil {
			return err
		}
		defer closeStore()
		return listenAndServe(ctx, &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		}, cfg.ShutdownTimeout)
	})
}

func newHandler(cfg Config, logger *log.Logger) (http.Handler, func(), error) {
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}
	scripts, err := encounter.LoadDir(cfg.Encounters)
	if err != nil {
		return nil, nil, err
	}
	for name, script := range scripts {
		if _, err := script.Resolve(cat); err != nil {
			return nil, nil, fmt.Errorf("encounter %s: %w", name, err)
		}
	}

	closeStore := func() {}
	var store storage.ResultStore
	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		store = db
		closeStore = func() {
			if err := db.Close(); err != nil {
				logger.Printf("close result store: %v", err)
			}
		}
	}

	wsCfg := ws.Config{
		Catalog:       cat,
		Encounters:    scripts,
		Store:         store,
		FrameInterval: cfg.FrameInterval,
		ThinkDelay:    cfg.Think,
		Logger:        logger,
		Verbose:       cfg.Verbose,
	}
	if cfg.AnyOrigin {
		wsCfg.CheckOrigin = func(*http.Request) bool { return true }
	}
	return ws.NewServer(wsCfg).Handler(), closeStore, nil
}

func listenAndServe(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	serveErr := make(chan error, 1)
	log.Printf("battle server listening on %s", srv.Addr)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
