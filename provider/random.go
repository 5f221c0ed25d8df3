package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"arena/game"
)

// Random picks a uniformly-random legal move. It never fails and never
// blocks beyond local computation.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random seeded with seed, or with the current time when
// seed is zero.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Name() string { return "random" }

func (r *Random) Decide(ctx context.Context, state game.State, legal []game.Move) (Decision, error) {
	r.mu.Lock()
	move := legal[r.rng.Intn(len(legal))]
	r.mu.Unlock()
	return Decision{Move: move}, nil
}
