// Package battle runs one encounter headless with every squad scripted.
package battle

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/louisbranch/skirmish/internal/battle/catalog"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/controller"
	"github.com/louisbranch/skirmish/internal/battle/encounter"
	"github.com/louisbranch/skirmish/internal/battle/loop"
	"github.com/louisbranch/skirmish/internal/battle/phase"
	"github.com/louisbranch/skirmish/internal/battle/result"
	"github.com/louisbranch/skirmish/internal/battle/round"
	"github.com/louisbranch/skirmish/internal/battle/storage"
	"github.com/louisbranch/skirmish/internal/battle/storage/sqlite"
	"github.com/louisbranch/skirmish/internal/battle/summary"
	entrypoint "github.com/louisbranch/skirmish/internal/platform/cmd"
	"github.com/louisbranch/skirmish/internal/random"
)

// Config holds battle command configuration.
type Config struct {
	Catalog   string        `env:"CATALOG"    envDefault:"content/catalog.yaml"`
	Encounter string        `env:"ENCOUNTER"`
	Seed      int64         `env:"SEED"`
	DBPath    string        `env:"DB_PATH"`
	Locale    string        `env:"LOCALE"     envDefault:"en-US"`
	Think     time.Duration `env:"THINK"      envDefault:"500ms"`
	MaxFrames int           `env:"MAX_FRAMES" envDefault:"100000"`
	Verbose   bool          `env:"VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Catalog, "catalog", cfg.Catalog, "path to the squad catalog yaml")
	fs.StringVar(&cfg.Encounter, "encounter", cfg.Encounter, "path to the encounter lua file")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 uses the encounter seed or a random one)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database to store the result in (empty skips storage)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale of the printed summary")
	fs.DurationVar(&cfg.Think, "think", cfg.Think, "virtual time scripted squads think before acting")
	fs.IntVar(&cfg.MaxFrames, "max-frames", cfg.MaxFrames, "frame budget before the battle is abandoned")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log phase and round transitions")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run plays the encounter to its end and prints the summary to out.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Encounter == "" {
		return errors.New("encounter path is required")
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBattle, func(ctx context.Context) error {
		return run(ctx, cfg, out, log.New(errOut, "", 0))
	})
}

func run(ctx context.Context, cfg Config, out io.Writer, logger *log.Logger) error {
	printer, err := summary.NewPrinter(cfg.Locale)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}
	script, err := encounter.LoadFile(cfg.Encounter)
	if err != nil {
		return err
	}
	setup, err := script.Resolve(cat)
	if err != nil {
		return err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = setup.Seed
	}
	rng, seed, err := random.Source(seed)
	if err != nil {
		return err
	}

	started := time.Now().UTC()
	l := loop.New(started)
	ai := controller.NewScripted(l, cfg.Think)
	var res *result.Result
	m := phase.New(phase.Config{
		Controllers: func(*combatant.Combatant) round.Controller { return ai },
		Rng:         rng,
		Logger:      logger,
		Verbose:     cfg.Verbose,
		OnFinished:  func(r result.Result) { res = &r },
	})
	if err := m.StartBattle(ctx, setup); err != nil {
		return err
	}
	if err := m.RequestCombat(ctx); err != nil {
		return err
	}
	err = l.RunUntil(func() bool { return res != nil || ctx.Err() != nil }, cfg.MaxFrames)
	if ctxErr := ctx.Err(); ctxErr != nil && res == nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("run encounter %s: %w", setup.Name, err)
	}

	if err := printer.Report(out, setup.Name, seed, *res); err != nil {
		return err
	}
	if cfg.DBPath == "" {
		return nil
	}
	id, err := store(ctx, cfg.DBPath, storage.ResultRecord{
		Encounter: setup.Name,
		Seed:      seed,
		StartedAt: started,
		EndedAt:   time.Now().UTC(),
		Result:    *res,
	})
	if err != nil {
		return err
	}
	return printer.Saved(out, id)
}

func store(ctx context.Context, path string, record storage.ResultRecord) (string, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()
	record.ID = uuid.NewString()
	if err := db.PutResult(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}
