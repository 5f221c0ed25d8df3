package engine

import "time"

// Reason explains why a match terminated.
type Reason string

const (
	// ReasonNormal means the rules engine reported a terminal state.
	ReasonNormal Reason = "normal"
	// ReasonTurnLimit means the configured maximum turn count was reached.
	ReasonTurnLimit Reason = "turn_limit"
	// ReasonTimeout means the match exceeded its wall-clock budget.
	ReasonTimeout Reason = "timeout"
	// ReasonError means an unrecoverable engine contract violation occurred.
	ReasonError Reason = "error"
)

// Provenance tags where a logged move came from.
type Provenance string

const (
	// ProvenanceProvider marks a move chosen by the side's decision provider.
	ProvenanceProvider Provenance = "provider"
	// ProvenanceFallback marks a random legal move substituted after the
	// provider failed, timed out, or returned an illegal move.
	ProvenanceFallback Provenance = "fallback"
	// ProvenanceAuto marks the only legal move, taken without consulting the
	// provider.
	ProvenanceAuto Provenance = "auto"
)

// Config holds the per-match parameters. It is created once by the caller
// and read-only for the match's lifetime. A non-positive limit disables the
// corresponding cap.
type Config struct {
	MatchID         string
	Sides           map[string]string // Side identifier to participant
	MaxTurns        int
	Timeout         time.Duration
	DecisionTimeout time.Duration
}

// TurnRecord is one entry of a match's action log.
type TurnRecord struct {
	Turn        int        `json:"turn"`
	Side        string     `json:"side"`
	Participant string     `json:"participant"`
	Move        string     `json:"move"`
	Rationale   string     `json:"rationale,omitempty"`
	Provenance  Provenance `json:"provenance"`
}

// Result is the outcome of one completed match. It is created exactly once,
// at match end, and never mutated afterwards.
type Result struct {
	MatchID    string            `json:"match_id"`
	Sides      map[string]string `json:"sides"`
	Winner     string            `json:"winner,omitempty"` // Participant, "" for none
	WinnerSide string            `json:"winner_side,omitempty"`
	Turns      int               `json:"turns"`
	Duration   time.Duration     `json:"duration"`
	Reason     Reason            `json:"reason"`
	Log        []TurnRecord      `json:"log"`
}

// Observer consumes the match event stream. Delivery is fire-and-forget: the
// match catches and discards observer panics, and a slow observer must not
// block the turn loop.
type Observer interface {
	MatchStart(matchID string, sides map[string]string)
	Turn(matchID string, record TurnRecord, snapshot map[string]any)
	MatchEnd(matchID string, result Result)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) MatchStart(string, map[string]string)    {}
func (NopObserver) Turn(string, TurnRecord, map[string]any) {}
func (NopObserver) MatchEnd(string, Result)                 {}
