package effect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
)

// Trigger is a moment in the round/turn lifecycle at which effects activate.
type Trigger int

const (
	TriggerOnAttach Trigger = iota
	TriggerRoundStart
	TriggerRoundEnd
	TriggerOnAnyAction
	TriggerOnDefend
	TriggerOnSkip
	TriggerOnAttack
	TriggerOnDealDamage
	TriggerOnApplyDamage
	TriggerOnAbilityUse
	TriggerTurnStart
	TriggerTurnEnd
)

var triggerNames = map[Trigger]string{
	TriggerOnAttach:      "on_attach",
	TriggerRoundStart:    "round_start",
	TriggerRoundEnd:      "round_end",
	TriggerOnAnyAction:   "on_any_action",
	TriggerOnDefend:      "on_defend",
	TriggerOnSkip:        "on_skip",
	TriggerOnAttack:      "on_attack",
	TriggerOnDealDamage:  "on_deal_damage",
	TriggerOnApplyDamage: "on_apply_damage",
	TriggerOnAbilityUse:  "on_ability_use",
	TriggerTurnStart:     "turn_start",
	TriggerTurnEnd:       "turn_end",
}

func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseTrigger maps content names onto triggers.
func ParseTrigger(value string) (Trigger, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for t, name := range triggerNames {
		if name == value {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger %q", value)
}

// StackPolicy governs reapplication of an effect that is already attached.
type StackPolicy int

const (
	StackRefreshDuration StackPolicy = iota
	StackAddStacks
	StackIgnore
)

func (p StackPolicy) String() string {
	switch p {
	case StackRefreshDuration:
		return "refresh_duration"
	case StackAddStacks:
		return "add_stacks"
	case StackIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ParseStackPolicy maps content names onto stacking policies.
func ParseStackPolicy(value string) (StackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "refresh_duration":
		return StackRefreshDuration, nil
	case "add_stacks":
		return StackAddStacks, nil
	case "ignore":
		return StackIgnore, nil
	default:
		return 0, fmt.Errorf("unknown stack policy %q", value)
	}
}

// DurationKind selects which trigger counts an effect down.
type DurationKind int

const (
	// DurationNone lasts until removed or its tick limit is reached.
	DurationNone DurationKind = iota
	// DurationTurns counts down at the end of each of the target's turns.
	DurationTurns
	// DurationRounds counts down at the end of each round.
	DurationRounds
)

// ParseDurationKind maps content names onto duration kinds.
func ParseDurationKind(value string) (DurationKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return DurationNone, nil
	case "turns":
		return DurationTurns, nil
	case "rounds":
		return DurationRounds, nil
	default:
		return 0, fmt.Errorf("unknown duration kind %q", value)
	}
}

// ErrInvalidDefinition indicates an effect definition cannot be registered.
var ErrInvalidDefinition = errors.New("effect definition is invalid")

// ErrUnknownEffect indicates an effect id is not registered.
var ErrUnknownEffect = errors.New("unknown effect")

// Definition describes a status effect as authored in content.
type Definition struct {
	ID        string
	Name      string
	Triggers  []Trigger
	Stacking  StackPolicy
	MaxStacks int
	Duration  DurationKind
	// Length is the number of turns or rounds for duration-limited effects.
	Length   int
	MaxTicks int
	// Modifiers apply per stack for as long as the effect is attached.
	Modifiers []combatant.Modifier
	// Damage and Heal apply per stack on every activation.
	Damage     int
	DamageType combatant.DamageType
	Heal       int
}

// Validate checks the definition for values the engine relies on.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDefinition)
	}
	if d.MaxStacks < 0 || d.MaxTicks < 0 || d.Length < 0 {
		return fmt.Errorf("%w: %s limits must not be negative", ErrInvalidDefinition, d.ID)
	}
	if d.Duration != DurationNone && d.Length == 0 {
		return fmt.Errorf("%w: %s duration length is required", ErrInvalidDefinition, d.ID)
	}
	if d.Damage < 0 || d.Heal < 0 {
		return fmt.Errorf("%w: %s damage and heal must not be negative", ErrInvalidDefinition, d.ID)
	}
	return nil
}

func (d Definition) maxStacks() int {
	if d.MaxStacks <= 0 {
		return 1
	}
	return d.MaxStacks
}

func (d Definition) activatesOn(t Trigger) bool {
	for _, trigger := range d.Triggers {
		if trigger == t {
			return true
		}
	}
	return false
}

// EventKind classifies what happened to an effect instance.
type EventKind int

const (
	EventAttached EventKind = iota
	EventRefreshed
	EventStacked
	EventIgnored
	EventActivated
	EventExpired
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventAttached:
		return "attached"
	case EventRefreshed:
		return "refreshed"
	case EventStacked:
		return "stacked"
	case EventIgnored:
		return "ignored"
	case EventActivated:
		return "activated"
	case EventExpired:
		return "expired"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event reports one change to an effect instance. Damage and Healed carry the
// hit points changed by an activation.
type Event struct {
	Kind     EventKind
	EffectID string
	TargetID string
	Trigger  Trigger
	Stacks   int
	Damage   int
	Healed   int
}
