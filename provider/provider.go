package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"arena/game"
)

// Decision is one chosen move with an optional rationale.
type Decision struct {
	Move      game.Move
	Rationale string
}

// Decider selects one legal move for the side to move. The returned move
// must be a member of legal, and ctx carries the per-decision deadline. A
// Decider that cannot produce a usable decision returns an error rather than
// panicking; the caller applies its own fallback policy.
type Decider interface {
	Name() string
	Decide(ctx context.Context, state game.State, legal []game.Move) (Decision, error)
}

// IsScripted reports whether participant names a built-in strategy rather
// than a model.
func IsScripted(participant string) bool {
	return participant == "greedy" || participant == "random" ||
		strings.HasPrefix(participant, "random:")
}

// New builds the Decider for a participant name: "random" (optionally
// "random:<seed>") and "greedy" map to the scripted strategies, anything
// else is treated as a model identifier.
func New(participant string, cfg ModelConfig) (Decider, error) {
	switch {
	case participant == "":
		return nil, fmt.Errorf("empty participant name")
	case participant == "random":
		return NewRandom(0), nil
	case strings.HasPrefix(participant, "random:"):
		seed, err := strconv.ParseUint(strings.TrimPrefix(participant, "random:"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad random seed in %q: %w", participant, err)
		}
		return NewRandom(seed), nil
	case participant == "greedy":
		return NewGreedy(game.EvaluateForces), nil
	default:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("participant %q requires an API key", participant)
		}
		return NewModel(participant, cfg), nil
	}
}
