package observer

import (
	"github.com/rs/zerolog/log"

	"arena/engine"
	"arena/rating"
	"arena/tournament"
)

// Nop discards all events.
type Nop = tournament.NopObserver

// Log writes match events to the structured log. It is the default console
// observer for tournament runs.
type Log struct{}

func (Log) MatchStart(matchID string, sides map[string]string) {
	log.Info().Str("match", matchID).Interface("sides", sides).Msg("match started")
}

func (Log) Turn(matchID string, record engine.TurnRecord, _ map[string]any) {
	event := log.Debug().Str("match", matchID).Int("turn", record.Turn).
		Str("side", record.Side).Str("provenance", string(record.Provenance))
	if record.Rationale != "" {
		event = event.Str("rationale", record.Rationale)
	}
	event.Msgf("%s plays: %s", record.Participant, record.Move)
}

func (Log) MatchEnd(matchID string, result engine.Result) {
	log.Info().Str("match", matchID).Str("reason", string(result.Reason)).
		Int("turns", result.Turns).Dur("duration", result.Duration).
		Msgf("match ended, winner: %s", winnerOrNone(result.Winner))
}

func (Log) LeaderboardChanged(standings []rating.Standing) {
	for i, standing := range standings {
		log.Debug().Msgf("leaderboard #%d: %s %.1f (%d games, %d wins)",
			i+1, standing.Participant, standing.Rating, standing.Games, standing.Wins)
	}
}

func winnerOrNone(winner string) string {
	if winner == "" {
		return "none"
	}
	return winner
}

// Multi fans each event out to every wrapped observer in order.
type Multi []tournament.Observer

func (m Multi) MatchStart(matchID string, sides map[string]string) {
	for _, o := range m {
		o.MatchStart(matchID, sides)
	}
}

func (m Multi) Turn(matchID string, record engine.TurnRecord, snapshot map[string]any) {
	for _, o := range m {
		o.Turn(matchID, record, snapshot)
	}
}

func (m Multi) MatchEnd(matchID string, result engine.Result) {
	for _, o := range m {
		o.MatchEnd(matchID, result)
	}
}

func (m Multi) LeaderboardChanged(standings []rating.Standing) {
	for _, o := range m {
		o.LeaderboardChanged(standings)
	}
}
