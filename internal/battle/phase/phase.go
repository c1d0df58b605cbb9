// Package phase runs one encounter from setup through deployment and combat
// to its result.
package phase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/cooldown"
	"github.com/louisbranch/skirmish/internal/battle/deploy"
	"github.com/louisbranch/skirmish/internal/battle/effect"
	"github.com/louisbranch/skirmish/internal/battle/result"
	"github.com/louisbranch/skirmish/internal/battle/round"
)

const tracerName = "github.com/louisbranch/skirmish/internal/battle/phase"

// Phase names an encounter phase.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseTactics Phase = "tactics"
	PhaseCombat  Phase = "combat"
	PhaseResults Phase = "results"
)

const (
	eventStart  = "start_battle"
	eventCombat = "request_combat"
	eventFinish = "finish"
)

var (
	// ErrInvalidTransition indicates an operation was requested in the wrong phase.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrInvalidSetup indicates the setup payload cannot be deployed.
	ErrInvalidSetup = errors.New("invalid battle setup")
)

// Config wires the encounter to its collaborators.
type Config struct {
	// Controllers picks who decides for each squad once combat starts.
	Controllers func(*combatant.Combatant) round.Controller
	UI          round.UI
	Presenter   action.Presenter
	Rng         round.Rng
	Columns     int
	Rows        int
	Logger      *log.Logger
	Verbose     bool
	Tracer      trace.Tracer
	// OnFinished receives the result once the encounter reaches Results.
	OnFinished func(result.Result)
}

// Machine is the encounter phase machine. One instance serves one encounter.
type Machine struct {
	cfg    Config
	fsm    *fsm.FSM
	log    *log.Logger
	tracer trace.Tracer

	ctx     context.Context
	span    trace.Span
	setup   Setup
	roster  []*combatant.Combatant
	grid    *deploy.Grid
	effects *effect.Engine
	rounds  *round.Machine
	result  *result.Result
}

// New returns a machine in PhaseLoading.
func New(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	m := &Machine{
		cfg:    cfg,
		log:    logger,
		tracer: tracer,
		ctx:    context.Background(),
		grid:   deploy.NewGrid(cfg.Columns, cfg.Rows),
	}
	m.fsm = fsm.NewFSM(
		string(PhaseLoading),
		fsm.Events{
			{Name: eventStart, Src: []string{string(PhaseLoading)}, Dst: string(PhaseTactics)},
			{Name: eventCombat, Src: []string{string(PhaseTactics)}, Dst: string(PhaseCombat)},
			{Name: eventFinish, Src: []string{string(PhaseCombat)}, Dst: string(PhaseResults)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if cfg.Verbose {
					m.log.Printf("phase %s --%s--> %s", e.Src, e.Event, e.Dst)
				}
			},
		},
	)
	return m
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return Phase(m.fsm.Current()) }

// StartBattle consumes the setup payload, instantiates squads, and lays
// them out on the deployment grid.
func (m *Machine) StartBattle(ctx context.Context, setup Setup) error {
	if !m.fsm.Can(eventStart) {
		return m.invalid(eventStart)
	}
	roster, effects, err := setup.Deploy()
	if err != nil {
		return err
	}
	if err := m.grid.DefaultLayout(roster); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}
	if err := m.fire(ctx, eventStart); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.ctx, m.span = m.tracer.Start(ctx, "battle.encounter",
		trace.WithAttributes(
			attribute.String("battle.encounter", setup.Name),
			attribute.Int("battle.squads", len(roster)),
		))
	m.setup = setup
	m.roster = roster
	m.effects = effects
	return nil
}

// MoveSquad relocates a friendly squad during Tactics.
func (m *Machine) MoveSquad(id string, cell deploy.Cell) error {
	if m.Phase() != PhaseTactics {
		return fmt.Errorf("%w: move squad during %s", ErrInvalidTransition, m.Phase())
	}
	return m.grid.Move(id, cell)
}

// RequestCombat locks the deployment and starts the first round. The
// encounter may finish before RequestCombat returns when every controller
// answers synchronously.
func (m *Machine) RequestCombat(ctx context.Context) error {
	if err := m.fire(ctx, eventCombat); err != nil {
		return err
	}
	m.grid.Lock()
	m.rounds = round.New(round.Config{
		Roster:      m.roster,
		Controllers: m.cfg.Controllers,
		Effects:     m.effects,
		Cooldowns:   cooldown.NewLedger(),
		Rng:         m.cfg.Rng,
		UI:          m.cfg.UI,
		Presenter:   m.cfg.Presenter,
		Logger:      m.log,
		Verbose:     m.cfg.Verbose,
		Tracer:      m.tracer,
		OnFinished:  m.finish,
	})
	return m.rounds.Start(m.ctx)
}

// Flee asks the round machine to end combat with a Flee verdict.
func (m *Machine) Flee() error {
	if m.Phase() != PhaseCombat || m.rounds == nil {
		return fmt.Errorf("%w: flee during %s", ErrInvalidTransition, m.Phase())
	}
	m.rounds.Flee()
	return nil
}

// Result returns the verdict once the encounter reaches Results.
func (m *Machine) Result() (result.Result, bool) {
	if m.result == nil {
		return result.Result{}, false
	}
	return *m.result, true
}

// Setup returns the payload the encounter was started with.
func (m *Machine) Setup() Setup { return m.setup }

// Roster returns every deployed squad, fallen ones included.
func (m *Machine) Roster() []*combatant.Combatant {
	out := make([]*combatant.Combatant, len(m.roster))
	copy(out, m.roster)
	return out
}

// Squad looks up a deployed squad by id.
func (m *Machine) Squad(id string) (*combatant.Combatant, bool) {
	for _, c := range m.roster {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Grid returns the deployment grid.
func (m *Machine) Grid() *deploy.Grid { return m.grid }

// Rounds returns the round machine once combat has started.
func (m *Machine) Rounds() *round.Machine { return m.rounds }

func (m *Machine) finish(res result.Result) {
	if err := m.fire(context.WithoutCancel(m.ctx), eventFinish); err != nil {
		m.log.Printf("finish encounter: %v", err)
		return
	}
	m.result = &res
	if m.span != nil {
		m.span.SetAttributes(
			attribute.String("battle.status", res.Status.String()),
			attribute.Int("battle.rounds", res.Rounds),
		)
		m.span.End()
	}
	if m.cfg.OnFinished != nil {
		m.cfg.OnFinished(res)
	}
}

func (m *Machine) fire(ctx context.Context, event string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: %s during %s: %v", ErrInvalidTransition, event, m.Phase(), err)
	}
	return nil
}

func (m *Machine) invalid(event string) error {
	return fmt.Errorf("%w: %s during %s", ErrInvalidTransition, event, m.Phase())
}
