package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"arena/game"
	"arena/provider"
	"arena/utils"
)

// Match drives exactly one game from its initial state to a terminal
// condition, producing one Result.
type Match struct {
	config   Config
	state    game.State
	deciders map[string]provider.Decider
	observer Observer
	rng      *rand.Rand
}

// NewMatch binds a fresh rules-engine state and one decision provider per
// side. The state must not be shared with or reused by another match.
func NewMatch(config Config, state game.State, deciders map[string]provider.Decider, observer Observer) *Match {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Match{
		config:   config,
		state:    state,
		deciders: deciders,
		observer: observer,
		rng:      rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
}

// Run executes the turn loop until the game ends or a limit is hit. Provider
// failures fall back to a random legal move and never abort the match; only
// an engine contract violation terminates with ReasonError.
func (m *Match) Run(ctx context.Context) Result {
	start := time.Now()
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	m.emit(func(o Observer) { o.MatchStart(m.config.MatchID, m.config.Sides) })
	log.Info().Str("match", m.config.MatchID).Msgf("match starting, %s to move", m.state.Player())

	state := m.state
	var records []TurnRecord
	reason := ReasonNormal

loop:
	for turn := 1; ; turn++ {
		switch {
		case state.Over():
			reason = ReasonNormal
			break loop
		case m.config.MaxTurns > 0 && turn > m.config.MaxTurns:
			reason = ReasonTurnLimit
			break loop
		case ctx.Err() != nil:
			reason = ReasonTimeout
			break loop
		}

		legal := state.LegalMoves()
		if len(legal) == 0 {
			log.Error().Str("match", m.config.MatchID).Int("turn", turn).
				Msg("no legal moves in a non-terminal state")
			reason = ReasonError
			break loop
		}

		side := state.Player()
		decision, provenance := m.decide(ctx, state, legal)

		next, err := applyMove(state, decision.Move)
		if err != nil {
			log.Error().Err(err).Str("match", m.config.MatchID).Int("turn", turn).
				Str("move", decision.Move.String()).Msg("rules engine rejected move")
			reason = ReasonError
			break loop
		}

		record := TurnRecord{
			Turn:        turn,
			Side:        side,
			Participant: m.config.Sides[side],
			Move:        decision.Move.String(),
			Rationale:   decision.Rationale,
			Provenance:  provenance,
		}
		records = append(records, record)
		m.emit(func(o Observer) { o.Turn(m.config.MatchID, record, next.Snapshot()) })

		state = next
	}

	result := Result{
		MatchID:  m.config.MatchID,
		Sides:    m.config.Sides,
		Turns:    len(records),
		Duration: time.Since(start),
		Reason:   reason,
		Log:      records,
	}
	if reason == ReasonNormal {
		result.WinnerSide = state.Winner()
		result.Winner = m.config.Sides[result.WinnerSide]
	}

	m.emit(func(o Observer) { o.MatchEnd(m.config.MatchID, result) })
	log.Info().Str("match", m.config.MatchID).Str("reason", string(reason)).
		Int("turns", result.Turns).Msgf("match over, winner: %s", orNone(result.Winner))

	return result
}

// decide resolves the side's provider under the per-decision timeout. A
// failed, late, or illegal decision falls back to a uniformly-random legal
// move; the match keeps going either way.
func (m *Match) decide(ctx context.Context, state game.State, legal []game.Move) (provider.Decision, Provenance) {
	// The only option needs no provider call
	if len(legal) == 1 {
		return provider.Decision{Move: legal[0]}, ProvenanceAuto
	}

	side := state.Player()
	decider := m.deciders[side]
	if decider == nil {
		return m.fallback(legal, fmt.Errorf("no decider bound to side %q", side))
	}

	decision, err := m.callDecider(ctx, decider, state, legal)
	if err != nil {
		return m.fallback(legal, err)
	}

	keys := utils.Map(legal, func(mv game.Move) string { return mv.String() })
	if decision.Move == nil || utils.FindIndex(keys, decision.Move.String()) < 0 {
		return m.fallback(legal, fmt.Errorf("%s returned a move outside the legal set", decider.Name()))
	}
	return decision, ProvenanceProvider
}

func (m *Match) callDecider(ctx context.Context, decider provider.Decider, state game.State, legal []game.Move) (provider.Decision, error) {
	if m.config.DecisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.DecisionTimeout)
		defer cancel()
	}

	type outcome struct {
		decision provider.Decision
		err      error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("decider %s panicked: %v", decider.Name(), r)}
			}
		}()
		decision, err := decider.Decide(ctx, state, legal)
		ch <- outcome{decision: decision, err: err}
	}()

	select {
	case <-ctx.Done():
		return provider.Decision{}, fmt.Errorf("decision timed out: %w", ctx.Err())
	case o := <-ch:
		return o.decision, o.err
	}
}

func (m *Match) fallback(legal []game.Move, cause error) (provider.Decision, Provenance) {
	log.Warn().Err(cause).Str("match", m.config.MatchID).Msg("falling back to a random legal move")
	return provider.Decision{Move: legal[m.rng.Intn(len(legal))]}, ProvenanceFallback
}

// applyMove shields the turn loop from rules-engine panics, reporting them
// as errors instead.
func applyMove(state game.State, move game.Move) (next game.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("apply %q: %v", move, r)
		}
	}()
	return state.Play(move), nil
}

// emit delivers one observer notification, discarding any panic so a broken
// observer can never affect the match outcome.
func (m *Match) emit(fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("match", m.config.MatchID).Msgf("observer panicked: %v", r)
		}
	}()
	fn(m.observer)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
