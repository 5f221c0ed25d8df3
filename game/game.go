package game

// Move is one action a side can take. The canonical description returned by
// String identifies the move for logging, prompting, and legality checks.
type Move interface {
	String() string
}

// State is the rules-engine boundary. Implementations should be immutable -
// Play always returns the successor state, and callers must use the returned
// reference from then on.
type State interface {
	// Player returns the identifier of the side to move.
	Player() string
	// Sides returns the identifiers of all competing sides. The list is
	// fixed for the lifetime of a game.
	Sides() []string
	LegalMoves() []Move
	// Play applies a legal move. Playing an illegal move panics.
	Play(Move) State
	Over() bool
	// Winner returns the winning side, or "" if there is none (yet).
	Winner() string
	// Snapshot returns a serializable view of the state for logging and
	// prompt construction.
	Snapshot() map[string]any
}

// Evaluate scores a state between -1 and 1 indicating how favorable the
// position is to the side to move (positive is winning).
type Evaluate func(State) float64
