package entity

import "time"

// TurnInput is one player's (or the party's folded) action for a turn.
type TurnInput struct {
	ActorID string `json:"actorId" mapstructure:"actorId"`
	Text    string `json:"text" mapstructure:"text"`
	// Composite is set when the input folds a coordinated action.
	Composite bool `json:"composite,omitempty" mapstructure:"composite"`
}

type SessionContext struct {
	SessionID string    `json:"sessionId"`
	Setting   string    `json:"setting,omitempty"`
	Premise   string    `json:"premise,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type TurnRecord struct {
	Turn  int       `json:"turn"`
	Input TurnInput `json:"input"`
	At    time.Time `json:"at"`
}

type Logs struct {
	Narrative []string `json:"narrative,omitempty"`
	Combat    []string `json:"combat,omitempty"`
}

// Bundle is everything a session persists and everything a full-sync carries.
type Bundle struct {
	Context  SessionContext `json:"context"`
	State    GameState      `json:"state"`
	History  []TurnRecord   `json:"history,omitempty"`
	Logs     Logs           `json:"logs"`
	Revision uint64         `json:"revision"`
}

// NewBundle starts a session from its creation input.
func NewBundle(ctx SessionContext, initial GameState) *Bundle {
	if ctx.CreatedAt.IsZero() {
		ctx.CreatedAt = time.Now().UTC()
	}
	if initial.WorldFlags == nil {
		initial.WorldFlags = map[string]any{}
	}
	return &Bundle{Context: ctx, State: initial}
}

// AppendInput records an input as pending for the next turn.
func (b *Bundle) AppendInput(in TurnInput, at time.Time) {
	b.History = append(b.History, TurnRecord{Turn: b.State.Turn + 1, Input: in, At: at})
}

// DropInput removes the most recent history record matching in. It is a
// no-op when the record is already gone.
func (b *Bundle) DropInput(in TurnInput) bool {
	for i := len(b.History) - 1; i >= 0; i-- {
		if b.History[i].Input == in {
			b.History = append(b.History[:i], b.History[i+1:]...)
			return true
		}
	}
	return false
}
