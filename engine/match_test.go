package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"arena/game"
	"arena/provider"
)

type stubMove string

func (m stubMove) String() string { return string(m) }

// stubState alternates sides and counts down to a terminal state.
type stubState struct {
	player    string
	remaining int
	winner    string
	legal     []game.Move
	playPanic bool
}

func (s stubState) Player() string { return s.player }

func (s stubState) Sides() []string { return []string{"x", "o"} }

func (s stubState) LegalMoves() []game.Move {
	if s.remaining <= 0 {
		return nil
	}
	return s.legal
}

func (s stubState) Play(game.Move) game.State {
	if s.playPanic {
		panic("rules blew up")
	}
	next := s
	next.remaining--
	if next.player == "x" {
		next.player = "o"
	} else {
		next.player = "x"
	}
	return next
}

func (s stubState) Over() bool { return s.remaining <= 0 }

func (s stubState) Winner() string {
	if s.Over() {
		return s.winner
	}
	return ""
}

func (s stubState) Snapshot() map[string]any {
	return map[string]any{"remaining": s.remaining}
}

type stubDecider struct {
	name string
	fn   func(ctx context.Context, state game.State, legal []game.Move) (provider.Decision, error)
}

func (d stubDecider) Name() string { return d.name }

func (d stubDecider) Decide(ctx context.Context, state game.State, legal []game.Move) (provider.Decision, error) {
	return d.fn(ctx, state, legal)
}

func firstLegal(name string) stubDecider {
	return stubDecider{name: name, fn: func(_ context.Context, _ game.State, legal []game.Move) (provider.Decision, error) {
		return provider.Decision{Move: legal[0], Rationale: "first legal"}, nil
	}}
}

func testConfig() Config {
	return Config{
		MatchID:         "m-test",
		Sides:           map[string]string{"x": "alice", "o": "bob"},
		MaxTurns:        50,
		Timeout:         5 * time.Second,
		DecisionTimeout: time.Second,
	}
}

func bothSides(d provider.Decider) map[string]provider.Decider {
	return map[string]provider.Decider{"x": d, "o": d}
}

var twoMoves = []game.Move{stubMove("left"), stubMove("right")}

func TestMatchRun(t *testing.T) {
	t.Run("normal termination maps the winning side to its participant", func(t *testing.T) {
		state := stubState{player: "x", remaining: 3, winner: "x", legal: twoMoves}
		m := NewMatch(testConfig(), state, bothSides(firstLegal("stub")), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason)
		require.Equal(t, 3, result.Turns)
		require.Equal(t, "x", result.WinnerSide)
		require.Equal(t, "alice", result.Winner)
		require.Len(t, result.Log, 3)
		for _, record := range result.Log {
			require.Equal(t, ProvenanceProvider, record.Provenance)
			require.Equal(t, "first legal", record.Rationale)
		}
	})

	t.Run("turn limit stops the match with no winner", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxTurns = 5
		state := stubState{player: "x", remaining: 1000, legal: twoMoves}
		m := NewMatch(cfg, state, bothSides(firstLegal("stub")), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonTurnLimit, result.Reason)
		require.Equal(t, 5, result.Turns, "exactly the configured number of turns is played")
		require.Empty(t, result.Winner)
		require.Empty(t, result.WinnerSide)
	})

	t.Run("non-positive turn cap means unlimited", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxTurns = 0
		state := stubState{player: "x", remaining: 3, winner: "x", legal: twoMoves}
		m := NewMatch(cfg, state, bothSides(firstLegal("stub")), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason, "the match is not cut off on turn one")
		require.Equal(t, 3, result.Turns)
	})

	t.Run("single legal move is taken without consulting the provider", func(t *testing.T) {
		state := stubState{player: "x", remaining: 2, winner: "x", legal: []game.Move{stubMove("only")}}
		exploding := stubDecider{name: "exploding", fn: func(context.Context, game.State, []game.Move) (provider.Decision, error) {
			t.Error("provider must not be called for a forced move")
			return provider.Decision{}, nil
		}}
		m := NewMatch(testConfig(), state, bothSides(exploding), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason)
		for _, record := range result.Log {
			require.Equal(t, ProvenanceAuto, record.Provenance)
		}
	})

	t.Run("provider error falls back to a random legal move", func(t *testing.T) {
		state := stubState{player: "x", remaining: 4, winner: "o", legal: twoMoves}
		failing := stubDecider{name: "failing", fn: func(context.Context, game.State, []game.Move) (provider.Decision, error) {
			return provider.Decision{}, context.DeadlineExceeded
		}}
		m := NewMatch(testConfig(), state, bothSides(failing), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason, "provider failures never abort the match")
		require.Equal(t, 4, result.Turns)
		for _, record := range result.Log {
			require.Equal(t, ProvenanceFallback, record.Provenance)
			require.Contains(t, []string{"left", "right"}, record.Move)
		}
	})

	t.Run("illegal provider move falls back", func(t *testing.T) {
		state := stubState{player: "x", remaining: 2, winner: "x", legal: twoMoves}
		cheater := stubDecider{name: "cheater", fn: func(context.Context, game.State, []game.Move) (provider.Decision, error) {
			return provider.Decision{Move: stubMove("teleport")}, nil
		}}
		m := NewMatch(testConfig(), state, bothSides(cheater), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason)
		for _, record := range result.Log {
			require.Equal(t, ProvenanceFallback, record.Provenance)
			require.Contains(t, []string{"left", "right"}, record.Move)
		}
	})

	t.Run("panicking provider falls back", func(t *testing.T) {
		state := stubState{player: "x", remaining: 2, winner: "x", legal: twoMoves}
		panicking := stubDecider{name: "panicking", fn: func(context.Context, game.State, []game.Move) (provider.Decision, error) {
			panic("agent meltdown")
		}}
		m := NewMatch(testConfig(), state, bothSides(panicking), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason)
		require.Equal(t, ProvenanceFallback, result.Log[0].Provenance)
	})

	t.Run("missing decider for a side falls back", func(t *testing.T) {
		state := stubState{player: "x", remaining: 2, winner: "x", legal: twoMoves}
		m := NewMatch(testConfig(), state, map[string]provider.Decider{}, nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason)
		require.Equal(t, ProvenanceFallback, result.Log[0].Provenance)
	})

	t.Run("wall-clock budget ends the match with a timeout", func(t *testing.T) {
		cfg := testConfig()
		cfg.Timeout = 50 * time.Millisecond
		cfg.DecisionTimeout = time.Second
		state := stubState{player: "x", remaining: 1000, legal: twoMoves}
		sleeper := stubDecider{name: "sleeper", fn: func(ctx context.Context, _ game.State, legal []game.Move) (provider.Decision, error) {
			<-ctx.Done()
			return provider.Decision{}, ctx.Err()
		}}
		m := NewMatch(cfg, state, bothSides(sleeper), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonTimeout, result.Reason)
		require.Empty(t, result.Winner)
	})

	t.Run("no legal moves in a non-terminal state is an engine error", func(t *testing.T) {
		state := stubState{player: "x", remaining: 5, legal: nil}
		m := NewMatch(testConfig(), state, bothSides(firstLegal("stub")), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonError, result.Reason)
		require.Zero(t, result.Turns)
	})

	t.Run("rules engine panic on apply is an engine error", func(t *testing.T) {
		state := stubState{player: "x", remaining: 5, legal: twoMoves, playPanic: true}
		m := NewMatch(testConfig(), state, bothSides(firstLegal("stub")), nil)

		result := m.Run(context.Background())

		require.Equal(t, ReasonError, result.Reason)
		require.Empty(t, result.Winner)
	})
}

// recordingObserver captures every event for assertions.
type recordingObserver struct {
	starts  int
	turns   []TurnRecord
	results []Result
}

func (r *recordingObserver) MatchStart(string, map[string]string) { r.starts++ }

func (r *recordingObserver) Turn(_ string, record TurnRecord, _ map[string]any) {
	r.turns = append(r.turns, record)
}

func (r *recordingObserver) MatchEnd(_ string, result Result) {
	r.results = append(r.results, result)
}

type panickyObserver struct{}

func (panickyObserver) MatchStart(string, map[string]string)    { panic("observer down") }
func (panickyObserver) Turn(string, TurnRecord, map[string]any) { panic("observer down") }
func (panickyObserver) MatchEnd(string, Result)                 { panic("observer down") }

func TestMatchObserver(t *testing.T) {
	t.Run("observer sees start, every turn, and the end", func(t *testing.T) {
		obs := &recordingObserver{}
		state := stubState{player: "x", remaining: 3, winner: "x", legal: twoMoves}
		m := NewMatch(testConfig(), state, bothSides(firstLegal("stub")), obs)

		result := m.Run(context.Background())

		require.Equal(t, 1, obs.starts)
		require.Len(t, obs.turns, result.Turns)
		require.Len(t, obs.results, 1)
		require.Equal(t, result, obs.results[0])
		require.Equal(t, 1, obs.turns[0].Turn)
		require.Equal(t, "x", obs.turns[0].Side)
		require.Equal(t, "alice", obs.turns[0].Participant)
	})

	t.Run("panicking observer cannot affect the match", func(t *testing.T) {
		state := stubState{player: "x", remaining: 3, winner: "x", legal: twoMoves}
		m := NewMatch(testConfig(), state, bothSides(firstLegal("stub")), panickyObserver{})

		result := m.Run(context.Background())

		require.Equal(t, ReasonNormal, result.Reason)
		require.Equal(t, "alice", result.Winner)
	})
}
