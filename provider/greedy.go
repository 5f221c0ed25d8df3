package provider

import (
	"context"
	"fmt"

	"arena/game"
)

// Greedy plays every legal move and keeps the one whose successor scores
// best under an evaluation function.
type Greedy struct {
	evaluate game.Evaluate
}

func NewGreedy(evaluate game.Evaluate) *Greedy {
	return &Greedy{evaluate: evaluate}
}

func (g *Greedy) Name() string { return "greedy" }

func (g *Greedy) Decide(ctx context.Context, state game.State, legal []game.Move) (Decision, error) {
	side := state.Player()
	best := -1
	bestScore := 0.0

	for i, move := range legal {
		successor := state.Play(move)

		var score float64
		switch {
		case successor.Winner() == side:
			score = 1.0
		case successor.Player() == side:
			score = g.evaluate(successor)
		default:
			// Successor is scored from the opponent's perspective
			score = -g.evaluate(successor)
		}

		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return Decision{}, fmt.Errorf("no legal moves to evaluate")
	}
	return Decision{
		Move:      legal[best],
		Rationale: fmt.Sprintf("best evaluation %.3f", bestScore),
	}, nil
}
