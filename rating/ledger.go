package rating

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultKFactor       = 32.0
	DefaultInitialRating = 1500.0
)

// Entry is one participant's current standing in the ledger.
type Entry struct {
	Rating float64 `json:"rating"`
	Games  int     `json:"games"`
	Wins   int     `json:"wins"`
}

// HistoryRecord is an immutable record of one pairwise rating update.
type HistoryRecord struct {
	PlayerA   string    `json:"player_a"`
	PlayerB   string    `json:"player_b"`
	Winner    string    `json:"winner,omitempty"`
	Draw      bool      `json:"draw"`
	DeltaA    float64   `json:"delta_a"`
	DeltaB    float64   `json:"delta_b"`
	Timestamp time.Time `json:"timestamp"`
}

// Standing is one leaderboard row.
type Standing struct {
	Participant string `json:"participant"`
	Entry
}

// WinRate is the fraction of recorded games the participant won.
func (s Standing) WinRate() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Games)
}

// Ledger maintains Elo ratings and match history for all participants,
// backed by a JSON file rewritten atomically after every update. It is not
// safe for concurrent use; callers must serialize updates.
type Ledger struct {
	path    string
	kFactor float64
	initial float64
	ratings map[string]Entry
	history []HistoryRecord
}

type Option func(*Ledger)

func WithKFactor(k float64) Option {
	return func(l *Ledger) { l.kFactor = k }
}

func WithInitialRating(r float64) Option {
	return func(l *Ledger) { l.initial = r }
}

// ledgerFile is the persisted wire format.
type ledgerFile struct {
	Ratings     map[string]Entry `json:"ratings"`
	History     []HistoryRecord  `json:"history"`
	LastUpdated time.Time        `json:"last_updated"`
}

// NewLedger loads the ledger persisted at path, or starts an empty one when
// the file does not exist yet.
func NewLedger(path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		kFactor: DefaultKFactor,
		initial: DefaultInitialRating,
		ratings: map[string]Entry{},
	}
	for _, opt := range opts {
		opt(l)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("no existing ratings found, starting fresh")
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	if file.Ratings != nil {
		l.ratings = file.Ratings
	}
	l.history = file.History
	log.Info().Int("participants", len(l.ratings)).Msgf("loaded ratings from %s", path)
	return l, nil
}

// Rating returns a participant's current rating, or the initial rating for a
// participant the ledger has not seen.
func (l *Ledger) Rating(participant string) float64 {
	if entry, ok := l.ratings[participant]; ok {
		return entry.Rating
	}
	return l.initial
}

// expectedScore is the classic Elo expectation for a against b.
func (l *Ledger) expectedScore(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

// RecordMatch applies one pairwise Elo update between a and b. The winner
// must be a, b, or "" for a draw. The update is persisted before returning;
// on persistence failure the in-memory state is rolled back and the error
// surfaced, so memory never runs ahead of disk.
func (l *Ledger) RecordMatch(a, b, winner string) error {
	if a == "" || b == "" || a == b {
		return fmt.Errorf("invalid pairing %q vs %q", a, b)
	}
	if winner != "" && winner != a && winner != b {
		return fmt.Errorf("winner %q is not part of pairing %q vs %q", winner, a, b)
	}

	entryA := l.entry(a)
	entryB := l.entry(b)

	scoreA := 0.5
	switch winner {
	case a:
		scoreA = 1
	case b:
		scoreA = 0
	}
	expectedA := l.expectedScore(entryA.Rating, entryB.Rating)
	deltaA := l.kFactor * (scoreA - expectedA)
	deltaB := -deltaA

	entryA.Rating += deltaA
	entryB.Rating += deltaB
	entryA.Games++
	entryB.Games++
	if winner == a {
		entryA.Wins++
	} else if winner == b {
		entryB.Wins++
	}

	// Keep a snapshot so a failed persist can be rolled back
	prevA, hadA := l.ratings[a]
	prevB, hadB := l.ratings[b]
	l.ratings[a] = entryA
	l.ratings[b] = entryB
	l.history = append(l.history, HistoryRecord{
		PlayerA:   a,
		PlayerB:   b,
		Winner:    winner,
		Draw:      winner == "",
		DeltaA:    deltaA,
		DeltaB:    deltaB,
		Timestamp: time.Now().UTC(),
	})

	if err := l.persist(); err != nil {
		l.history = l.history[:len(l.history)-1]
		l.restore(a, prevA, hadA)
		l.restore(b, prevB, hadB)
		return fmt.Errorf("persisting rating update: %w", err)
	}

	log.Info().Msgf("updated ratings - %s: %.1f (%+.1f), %s: %.1f (%+.1f)",
		a, entryA.Rating, deltaA, b, entryB.Rating, deltaB)
	return nil
}

// entry returns a participant's entry, lazily initialized at the starting
// rating for participants appearing for the first time.
func (l *Ledger) entry(participant string) Entry {
	if entry, ok := l.ratings[participant]; ok {
		return entry
	}
	return Entry{Rating: l.initial}
}

func (l *Ledger) restore(participant string, prev Entry, existed bool) {
	if existed {
		l.ratings[participant] = prev
	} else {
		delete(l.ratings, participant)
	}
}

// Reset clears all ratings and history and persists the empty ledger. It is
// irreversible.
func (l *Ledger) Reset() error {
	log.Warn().Msg("resetting all ratings")
	prevRatings, prevHistory := l.ratings, l.history
	l.ratings = map[string]Entry{}
	l.history = nil

	if err := l.persist(); err != nil {
		l.ratings, l.history = prevRatings, prevHistory
		return fmt.Errorf("persisting ledger reset: %w", err)
	}
	return nil
}

// Leaderboard returns all participants ordered by rating descending, ties
// broken by participant name for determinism.
func (l *Ledger) Leaderboard() []Standing {
	standings := make([]Standing, 0, len(l.ratings))
	for participant, entry := range l.ratings {
		standings = append(standings, Standing{Participant: participant, Entry: entry})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Rating != standings[j].Rating {
			return standings[i].Rating > standings[j].Rating
		}
		return standings[i].Participant < standings[j].Participant
	})
	return standings
}

// History returns the append-only update history, oldest first.
func (l *Ledger) History() []HistoryRecord {
	return l.history
}

// persist atomically replaces the ledger file: write to a temp file in the
// same directory, then rename over the target.
func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(ledgerFile{
		Ratings:     l.ratings,
		History:     l.history,
		LastUpdated: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
