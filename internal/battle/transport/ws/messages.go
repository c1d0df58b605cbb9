package ws

import (
	"encoding/json"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/cooldown"
	"github.com/louisbranch/skirmish/internal/battle/deploy"
	"github.com/louisbranch/skirmish/internal/battle/result"
)

// Client message types.
const (
	msgStart   = "start"
	msgMove    = "move"
	msgCombat  = "combat"
	msgAttack  = "attack"
	msgDefend  = "defend"
	msgSkip    = "skip"
	msgAbility = "ability"
	msgCancel  = "cancel"
	msgPointer = "pointer"
	msgAck     = "ack"
	msgFlee    = "flee"
)

// Server message types.
const (
	msgPhase          = "phase"
	msgDeployment     = "deployment"
	msgQueue          = "queue"
	msgAbilities      = "abilities"
	msgHighlight      = "highlight"
	msgResetHighlight = "reset_highlight"
	msgTurn           = "turn"
	msgDamage         = "damage"
	msgResult         = "result"
	msgError          = "error"
)

// Inbound is a client message.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is a server message.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type moveData struct {
	Squad string `json:"squad"`
	Col   int    `json:"col"`
	Row   int    `json:"row"`
}

type abilityData struct {
	ID string `json:"id"`
}

type pointerData struct {
	Squad string `json:"squad"`
}

type ackData struct {
	ID uint64 `json:"id"`
}

// SquadView is a squad as the client sees it.
type SquadView struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Faction string       `json:"faction"`
	Troops  int          `json:"troops"`
	Health  int          `json:"health"`
	Cell    *deploy.Cell `json:"cell,omitempty"`
}

type deploymentView struct {
	Columns int         `json:"columns"`
	Rows    int         `json:"rows"`
	Locked  bool        `json:"locked"`
	Squads  []SquadView `json:"squads"`
}

type abilityView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Target    string `json:"target"`
	Remaining int    `json:"remaining"`
	Ready     bool   `json:"ready"`
}

type abilitiesView struct {
	Active    string        `json:"active"`
	Abilities []abilityView `json:"abilities"`
}

type turnView struct {
	Round    int    `json:"round"`
	Squad    string `json:"squad"`
	Defended bool   `json:"defended"`
}

type damageView struct {
	ID     uint64 `json:"id"`
	Target string `json:"target"`
	Amount int    `json:"amount"`
	Troops int    `json:"troops"`
}

type resultView struct {
	ID     string        `json:"id,omitempty"`
	Result result.Result `json:"result"`
}

func squadView(c *combatant.Combatant) SquadView {
	return SquadView{
		ID:      c.ID(),
		Name:    c.Name(),
		Faction: c.Faction().String(),
		Troops:  c.Troops(),
		Health:  c.Health(),
	}
}

func squadViews(list []*combatant.Combatant) []SquadView {
	out := make([]SquadView, 0, len(list))
	for _, c := range list {
		out = append(out, squadView(c))
	}
	return out
}

func abilityViews(actor *combatant.Combatant, abilities []combatant.Ability, cooldowns cooldown.Lookup) []abilityView {
	out := make([]abilityView, 0, len(abilities))
	for _, a := range abilities {
		v := abilityView{ID: a.ID, Name: a.Name, Target: a.Target.String(), Ready: true}
		if cooldowns != nil && actor != nil {
			v.Remaining = cooldowns.Remaining(actor.ID(), a.ID)
			v.Ready = cooldowns.IsReady(actor.ID(), a.ID)
		}
		out = append(out, v)
	}
	return out
}
