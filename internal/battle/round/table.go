package round

// State is a position in the round/turn lifecycle.
type State int

const (
	StateIdle State = iota
	StateRoundInit
	StateTurnInit
	StateTurnStart
	StateTurnWaitAction
	StateTurnSkip
	StateTurnEnd
	StateRoundEnd
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRoundInit:
		return "round_init"
	case StateTurnInit:
		return "turn_init"
	case StateTurnStart:
		return "turn_start"
	case StateTurnWaitAction:
		return "turn_wait_action"
	case StateTurnSkip:
		return "turn_skip"
	case StateTurnEnd:
		return "turn_end"
	case StateRoundEnd:
		return "round_end"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Trigger moves the machine between states.
type Trigger int

const (
	TriggerStart Trigger = iota
	TriggerNext
	TriggerSkip
	TriggerResolved
	TriggerRetry
	TriggerEndRound
	TriggerFinish
)

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerNext:
		return "next"
	case TriggerSkip:
		return "skip"
	case TriggerResolved:
		return "resolved"
	case TriggerRetry:
		return "retry"
	case TriggerEndRound:
		return "end_round"
	case TriggerFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// transitions lists every legal move. Finish is legal from every state
// except Finished so that fleeing can interrupt any step.
var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerStart: StateRoundInit,
	},
	StateRoundInit: {
		TriggerNext: StateTurnInit,
	},
	StateTurnInit: {
		TriggerNext:     StateTurnStart,
		TriggerSkip:     StateTurnSkip,
		TriggerEndRound: StateRoundEnd,
	},
	StateTurnStart: {
		TriggerNext: StateTurnWaitAction,
		TriggerSkip: StateTurnSkip,
	},
	StateTurnWaitAction: {
		TriggerResolved: StateTurnEnd,
		TriggerSkip:     StateTurnSkip,
		TriggerRetry:    StateTurnWaitAction,
	},
	StateTurnSkip: {
		TriggerNext: StateTurnEnd,
	},
	StateTurnEnd: {
		TriggerNext: StateTurnInit,
	},
	StateRoundEnd: {
		TriggerNext: StateRoundInit,
	},
}

func next(from State, t Trigger) (State, bool) {
	if from == StateFinished {
		return from, false
	}
	if t == TriggerFinish {
		return StateFinished, true
	}
	to, ok := transitions[from][t]
	return to, ok
}
