package tournament

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"arena/engine"
	"arena/game"
	"arena/provider"
	"arena/rating"
)

// Pairing is one unordered pair of participants.
type Pairing struct {
	A string
	B string
}

// Pairings generates every unordered pair of participants exactly once:
// n(n-1)/2 pairings, never pairing a participant with itself.
func Pairings(participants []string) []Pairing {
	var pairings []Pairing
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			pairings = append(pairings, Pairing{A: participants[i], B: participants[j]})
		}
	}
	return pairings
}

// Observer extends the match event stream with leaderboard updates. All
// notifications are fire-and-forget.
type Observer interface {
	engine.Observer
	LeaderboardChanged(standings []rating.Standing)
}

// NopObserver discards all events.
type NopObserver struct {
	engine.NopObserver
}

func (NopObserver) LeaderboardChanged([]rating.Standing) {}

// Config holds the tournament-wide settings.
type Config struct {
	Participants    []string
	GamesPerPairing int
	MaxTurns        int
	MatchTimeout    time.Duration
	DecisionTimeout time.Duration
}

// Scheduler runs a round-robin tournament: every pairing plays the
// configured number of matches sequentially, alternating sides, with
// outcomes forwarded to the rating ledger.
type Scheduler struct {
	config   Config
	ledger   *rating.Ledger
	newState func() game.State
	deciders func(participant string) (provider.Decider, error)
	observer Observer
}

// NewScheduler wires the scheduler to its collaborators. newState must
// return a fresh rules-engine state per call; deciders resolves a
// participant name to its decision provider.
func NewScheduler(config Config, ledger *rating.Ledger, newState func() game.State,
	deciders func(string) (provider.Decider, error), observer Observer) *Scheduler {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Scheduler{
		config:   config,
		ledger:   ledger,
		newState: newState,
		deciders: deciders,
		observer: observer,
	}
}

// Summary is the outcome of one tournament run.
type Summary struct {
	Matches   []engine.Result
	Skipped   []Pairing
	Standings []rating.Standing
}

// Run plays all pairings. A pairing whose participants cannot be resolved is
// skipped (the rest of the tournament proceeds); a match ending in timeout
// or error is recorded without a rating change; a ledger persistence failure
// halts the run.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	games := s.config.GamesPerPairing
	if games < 1 {
		games = 1
	}
	pairings := Pairings(s.config.Participants)
	summary := &Summary{}

	resolved := map[string]provider.Decider{}
	broken := map[string]error{}

	log.Info().Int("participants", len(s.config.Participants)).
		Int("pairings", len(pairings)).Int("games_per_pairing", games).
		Msg("starting tournament")

	for pi, pairing := range pairings {
		deciderA, err := s.resolve(pairing.A, resolved, broken)
		if err == nil {
			var deciderB provider.Decider
			deciderB, err = s.resolve(pairing.B, resolved, broken)
			if err == nil {
				if err := s.runPairing(ctx, pairing, pi, len(pairings), games, deciderA, deciderB, summary); err != nil {
					return summary, err
				}
				continue
			}
		}
		log.Error().Err(err).Msgf("skipping pairing %s vs %s", pairing.A, pairing.B)
		summary.Skipped = append(summary.Skipped, pairing)
	}

	summary.Standings = s.ledger.Leaderboard()
	log.Info().Int("matches", len(summary.Matches)).Int("skipped", len(summary.Skipped)).
		Msg("tournament complete")
	return summary, nil
}

func (s *Scheduler) resolve(participant string, resolved map[string]provider.Decider, broken map[string]error) (provider.Decider, error) {
	if err, ok := broken[participant]; ok {
		return nil, err
	}
	if decider, ok := resolved[participant]; ok {
		return decider, nil
	}
	decider, err := s.deciders(participant)
	if err != nil {
		err = fmt.Errorf("resolving participant %q: %w", participant, err)
		broken[participant] = err
		return nil, err
	}
	resolved[participant] = decider
	return decider, nil
}

func (s *Scheduler) runPairing(ctx context.Context, pairing Pairing, index, total, games int,
	deciderA, deciderB provider.Decider, summary *Summary) error {
	log.Info().Msgf("starting pairing %d of %d: %s vs %s", index+1, total, pairing.A, pairing.B)

	for g := 0; g < games; g++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("tournament canceled: %w", err)
		}

		// Alternate which participant takes the first-moving side to cancel
		// out any first-move advantage
		first, second := pairing.A, pairing.B
		firstDecider, secondDecider := deciderA, deciderB
		if g%2 == 1 {
			first, second = second, first
			firstDecider, secondDecider = secondDecider, firstDecider
		}

		state := s.newState()
		sideFirst := state.Player()
		sideSecond, err := otherSide(state.Sides(), sideFirst)
		if err != nil {
			return fmt.Errorf("match setup for %s vs %s: %w", pairing.A, pairing.B, err)
		}

		match := engine.NewMatch(engine.Config{
			MatchID:         uuid.NewString(),
			Sides:           map[string]string{sideFirst: first, sideSecond: second},
			MaxTurns:        s.config.MaxTurns,
			Timeout:         s.config.MatchTimeout,
			DecisionTimeout: s.config.DecisionTimeout,
		}, state, map[string]provider.Decider{
			sideFirst:  firstDecider,
			sideSecond: secondDecider,
		}, s.observer)

		result := match.Run(ctx)
		summary.Matches = append(summary.Matches, result)

		if err := s.record(pairing, result); err != nil {
			return err
		}
	}
	return nil
}

// record forwards one match outcome to the ledger. Timeout and error
// terminations carry no rating change; a turn-limit match counts as a draw.
func (s *Scheduler) record(pairing Pairing, result engine.Result) error {
	switch result.Reason {
	case engine.ReasonNormal:
		if err := s.ledger.RecordMatch(pairing.A, pairing.B, result.Winner); err != nil {
			return fmt.Errorf("recording match %s: %w", result.MatchID, err)
		}
	case engine.ReasonTurnLimit:
		if err := s.ledger.RecordMatch(pairing.A, pairing.B, ""); err != nil {
			return fmt.Errorf("recording match %s: %w", result.MatchID, err)
		}
	default:
		log.Warn().Str("match", result.MatchID).Str("reason", string(result.Reason)).
			Msg("match not rated")
		return nil
	}

	s.notifyLeaderboard()
	return nil
}

func (s *Scheduler) notifyLeaderboard() {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Msgf("leaderboard observer panicked: %v", r)
		}
	}()
	s.observer.LeaderboardChanged(s.ledger.Leaderboard())
}

// otherSide picks the opposing side identifier from the game's side list. A
// pairing binds exactly two deciders, so the game must expose exactly one
// side besides the one to move first.
func otherSide(sides []string, first string) (string, error) {
	other := ""
	for _, side := range sides {
		if side == first {
			continue
		}
		if other != "" {
			return "", fmt.Errorf("game has more than two sides: %v", sides)
		}
		other = side
	}
	if other == "" {
		return "", fmt.Errorf("game reports no side besides %q: %v", first, sides)
	}
	return other, nil
}
