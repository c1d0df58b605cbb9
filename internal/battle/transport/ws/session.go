package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/controller"
	"github.com/louisbranch/skirmish/internal/battle/cooldown"
	"github.com/louisbranch/skirmish/internal/battle/deploy"
	"github.com/louisbranch/skirmish/internal/battle/encounter"
	"github.com/louisbranch/skirmish/internal/battle/loop"
	"github.com/louisbranch/skirmish/internal/battle/phase"
	"github.com/louisbranch/skirmish/internal/battle/result"
	"github.com/louisbranch/skirmish/internal/battle/round"
	"github.com/louisbranch/skirmish/internal/battle/storage"
	"github.com/louisbranch/skirmish/internal/platform/requestctx"
	"github.com/louisbranch/skirmish/internal/random"
)

var (
	errNotStarted     = errors.New("battle has not started")
	errUnknownMessage = errors.New("unknown message type")
	errUnknownAck     = errors.New("unknown damage acknowledgment")
)

// session owns one connection's battle. Every field is touched only by the
// goroutine running run; the reader goroutine hands messages over a channel.
type session struct {
	cfg    Config
	log    *log.Logger
	conn   *websocket.Conn
	script *encounter.Script

	ctx       context.Context
	loop      *loop.Loop
	human     *controller.Human
	ai        *controller.Scripted
	phase     *phase.Machine
	seed      int64
	startedAt time.Time

	selection *combatant.Combatant
	acks      map[uint64]func()
	ackSeq    uint64
}

func newSession(cfg Config, logger *log.Logger, conn *websocket.Conn, script *encounter.Script) *session {
	s := &session{
		cfg:    cfg,
		log:    logger,
		conn:   conn,
		script: script,
		ctx:    context.Background(),
		loop:   loop.New(time.Now()),
		acks:   map[uint64]func(){},
	}
	s.human = controller.NewHuman(s.loop, s)
	s.ai = controller.NewScripted(s.loop, cfg.ThinkDelay)
	return s
}

func (s *session) run(ctx context.Context) error {
	s.ctx = ctx
	in := make(chan Inbound)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		for {
			var msg Inbound
			if err := s.conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case in <- msg:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	s.send(msgPhase, map[string]string{"phase": string(phase.PhaseLoading)})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg := <-in:
			if err := s.handle(msg); err != nil {
				s.send(msgError, map[string]string{"type": msg.Type, "message": err.Error()})
			}
			s.loop.Frame(time.Now())
		case now := <-ticker.C:
			s.loop.Frame(now)
		}
	}
}

func (s *session) handle(msg Inbound) error {
	if s.cfg.Verbose {
		s.log.Printf("ws: recv %s", msg.Type)
	}
	if msg.Type == msgStart {
		return s.start()
	}
	if s.phase == nil {
		return errNotStarted
	}

	switch msg.Type {
	case msgMove:
		var body moveData
		if err := decode(msg, &body); err != nil {
			return err
		}
		if err := s.phase.MoveSquad(body.Squad, deploy.Cell{Col: body.Col, Row: body.Row}); err != nil {
			return err
		}
		s.sendDeployment()
		return nil
	case msgCombat:
		if err := s.phase.RequestCombat(s.ctx); err != nil {
			return err
		}
		if s.phase.Phase() == phase.PhaseCombat {
			s.send(msgPhase, map[string]string{"phase": string(phase.PhaseCombat)})
		}
		return nil
	case msgAttack:
		return s.human.Attack()
	case msgDefend:
		return s.human.Defend()
	case msgSkip:
		return s.human.Skip()
	case msgCancel:
		return s.human.Cancel()
	case msgAbility:
		var body abilityData
		if err := decode(msg, &body); err != nil {
			return err
		}
		return s.human.UseAbility(body.ID)
	case msgPointer:
		var body pointerData
		if err := decode(msg, &body); err != nil {
			return err
		}
		c, ok := s.phase.Squad(body.Squad)
		if !ok {
			return fmt.Errorf("unknown squad %q", body.Squad)
		}
		s.selection = c
		return nil
	case msgAck:
		var body ackData
		if err := decode(msg, &body); err != nil {
			return err
		}
		done, ok := s.acks[body.ID]
		if !ok {
			return fmt.Errorf("%w: %d", errUnknownAck, body.ID)
		}
		delete(s.acks, body.ID)
		done()
		return nil
	case msgFlee:
		return s.phase.Flee()
	default:
		return fmt.Errorf("%w: %q", errUnknownMessage, msg.Type)
	}
}

func (s *session) start() error {
	if s.phase != nil {
		return fmt.Errorf("%w: battle already started", phase.ErrInvalidTransition)
	}
	setup, err := s.script.Resolve(s.cfg.Catalog)
	if err != nil {
		return err
	}
	rng, seed, err := random.Source(setup.Seed)
	if err != nil {
		return err
	}

	m := phase.New(phase.Config{
		Controllers: s.controllerFor,
		UI:          s,
		Presenter:   s,
		Rng:         rng,
		Columns:     s.cfg.Columns,
		Rows:        s.cfg.Rows,
		Logger:      s.log,
		Verbose:     s.cfg.Verbose,
		OnFinished:  s.finished,
	})
	if err := m.StartBattle(s.ctx, setup); err != nil {
		return err
	}
	s.phase = m
	s.seed = seed
	s.startedAt = time.Now().UTC()
	s.send(msgPhase, map[string]string{"phase": string(m.Phase())})
	s.sendDeployment()
	return nil
}

func (s *session) controllerFor(c *combatant.Combatant) round.Controller {
	if c.Faction().Friendly() {
		return s
	}
	return s.ai
}

// RequestAction hands the turn to the client.
func (s *session) RequestAction(turn round.Turn, ready func(*action.Action, error)) {
	s.human.RequestAction(turn, ready)
	s.send(msgTurn, turnView{Round: turn.Round, Squad: turn.Actor.ID(), Defended: turn.Defended})
}

// TakeSelection hands the last pointed-at squad to the pointer picker once.
func (s *session) TakeSelection() (*combatant.Combatant, bool) {
	c := s.selection
	s.selection = nil
	return c, c != nil
}

func (s *session) RenderQueue(queue []*combatant.Combatant) {
	s.send(msgQueue, squadViews(queue))
}

func (s *session) RenderAbilities(abilities []combatant.Ability, cooldowns cooldown.Lookup, active *combatant.Combatant) {
	view := abilitiesView{Abilities: abilityViews(active, abilities, cooldowns)}
	if active != nil {
		view.Active = active.ID()
	}
	s.send(msgAbilities, view)
}

func (s *session) Highlight(ability combatant.Ability) {
	s.send(msgHighlight, abilityData{ID: ability.ID})
}

func (s *session) ResetHighlight() {
	s.send(msgResetHighlight, nil)
}

// PlayDamage waits for the client to acknowledge the damage animation.
func (s *session) PlayDamage(target *combatant.Combatant, amount int, done func()) {
	s.ackSeq++
	s.acks[s.ackSeq] = done
	s.send(msgDamage, damageView{ID: s.ackSeq, Target: target.ID(), Amount: amount, Troops: target.Troops()})
}

func (s *session) finished(res result.Result) {
	view := resultView{Result: res}
	if s.cfg.Store != nil {
		id := requestctx.SessionIDFromContext(s.ctx)
		if id == "" {
			id = uuid.NewString()
		}
		record := storage.ResultRecord{
			ID:        id,
			Encounter: s.script.Name,
			Seed:      s.seed,
			StartedAt: s.startedAt,
			EndedAt:   time.Now().UTC(),
			Result:    res,
		}
		if err := s.cfg.Store.PutResult(context.WithoutCancel(s.ctx), record); err != nil {
			s.log.Printf("ws: store result: %v", err)
		} else {
			view.ID = record.ID
		}
	}
	s.send(msgPhase, map[string]string{"phase": string(phase.PhaseResults)})
	s.send(msgResult, view)
}

func (s *session) sendDeployment() {
	grid := s.phase.Grid()
	cols, rows := grid.Size()
	view := deploymentView{Columns: cols, Rows: rows, Locked: grid.Locked()}
	for _, c := range s.phase.Roster() {
		v := squadView(c)
		if cell, ok := grid.Position(c.ID()); ok {
			v.Cell = &cell
		}
		view.Squads = append(view.Squads, v)
	}
	s.send(msgDeployment, view)
}

func (s *session) send(kind string, data any) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(Outbound{Type: kind, Data: data}); err != nil {
		s.log.Printf("ws: write %s: %v", kind, err)
	}
}

func decode(msg Inbound, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s: missing data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}
