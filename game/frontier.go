package game

import "fmt"

// Frontier is the built-in two-sided territory game. Combat is fully
// deterministic so that Play is a pure function of (state, move).

const (
	SideNorth = "north"
	SideSouth = "south"
)

var sides = [2]string{SideNorth, SideSouth}

// Territory names, indexed by territory ID.
var territoryNames = []string{
	"Aldgate", "Brookfield", "Causeway", "Dunmore", "Eastwick",
	"Fenwater", "Granholm", "Hartvale", "Ironmoor", "Juniper",
}

// Adjacency data: mapping of territory names to their neighbors.
var adjacencyData = map[string][]string{
	"Aldgate":    {"Brookfield", "Fenwater", "Granholm"},
	"Brookfield": {"Aldgate", "Causeway", "Granholm", "Hartvale"},
	"Causeway":   {"Brookfield", "Dunmore", "Hartvale", "Ironmoor"},
	"Dunmore":    {"Causeway", "Eastwick", "Ironmoor", "Juniper"},
	"Eastwick":   {"Dunmore", "Juniper"},
	"Fenwater":   {"Aldgate", "Granholm"},
	"Granholm":   {"Aldgate", "Brookfield", "Fenwater", "Hartvale"},
	"Hartvale":   {"Brookfield", "Causeway", "Granholm", "Ironmoor"},
	"Ironmoor":   {"Causeway", "Dunmore", "Hartvale", "Juniper"},
	"Juniper":    {"Dunmore", "Eastwick", "Ironmoor"},
}

var (
	territoryIDs = buildTerritoryIDs()
	adjacent     = buildAdjacency()
)

func buildTerritoryIDs() map[string]int {
	ids := make(map[string]int, len(territoryNames))
	for id, name := range territoryNames {
		ids[name] = id
	}
	return ids
}

func buildAdjacency() [][]int {
	adj := make([][]int, len(territoryNames))
	for name, neighbors := range adjacencyData {
		id := territoryIDs[name]
		for _, n := range neighbors {
			adj[id] = append(adj[id], territoryIDs[n])
		}
	}
	return adj
}

type MoveKind int

const (
	DeployMove MoveKind = iota
	AttackMove
	PassMove
)

// FrontierMove represents a move in the Frontier game.
type FrontierMove struct {
	Kind   MoveKind
	From   int
	To     int
	Forces int
}

func (m FrontierMove) String() string {
	switch m.Kind {
	case DeployMove:
		return fmt.Sprintf("deploy %d to %s", m.Forces, territoryNames[m.To])
	case AttackMove:
		return fmt.Sprintf("attack %s from %s with %d", territoryNames[m.To], territoryNames[m.From], m.Forces)
	default:
		return "pass"
	}
}

// FrontierState is the dynamic state of one Frontier game. Play returns a
// copy; a FrontierState value never changes after creation.
type FrontierState struct {
	Ownership []int  // Side index per territory ID
	Forces    []int  // Force counts per territory ID
	Current   int    // Side index of the side to move
	Reserves  [2]int // Forces awaiting deployment per side
	Won       string // Winning side, "" if no winner yet
}

// NewFrontier returns the initial state: territories split alternately
// between the sides, garrisoned with three forces each, north to move first.
func NewFrontier() *FrontierState {
	n := len(territoryNames)
	gs := &FrontierState{
		Ownership: make([]int, n),
		Forces:    make([]int, n),
	}
	for id := 0; id < n; id++ {
		gs.Ownership[id] = id % 2
		gs.Forces[id] = 3
	}
	gs.Reserves[0] = gs.reinforcement(0)
	return gs
}

func (gs *FrontierState) Copy() *FrontierState {
	ownership := make([]int, len(gs.Ownership))
	copy(ownership, gs.Ownership)
	forces := make([]int, len(gs.Forces))
	copy(forces, gs.Forces)

	return &FrontierState{
		Ownership: ownership,
		Forces:    forces,
		Current:   gs.Current,
		Reserves:  gs.Reserves,
		Won:       gs.Won,
	}
}

func (gs *FrontierState) Player() string {
	return sides[gs.Current]
}

func (gs *FrontierState) Sides() []string {
	return sides[:]
}

func (gs *FrontierState) Over() bool {
	return gs.Won != ""
}

func (gs *FrontierState) Winner() string {
	return gs.Won
}

// LegalMoves returns all legal moves for the side to move. Reserves must be
// deployed before attacking; pass is always available once they are.
func (gs *FrontierState) LegalMoves() []Move {
	if gs.Won != "" {
		return nil
	}

	if r := gs.Reserves[gs.Current]; r > 0 {
		return gs.deployMoves(r)
	}

	var moves []Move
	for from, owner := range gs.Ownership {
		if owner != gs.Current || gs.Forces[from] <= 1 {
			continue
		}
		for _, to := range adjacent[from] {
			if gs.Ownership[to] != gs.Current {
				moves = append(moves, FrontierMove{
					Kind:   AttackMove,
					From:   from,
					To:     to,
					Forces: gs.Forces[from] - 1,
				})
			}
		}
	}
	moves = append(moves, FrontierMove{Kind: PassMove})
	return moves
}

// deployMoves generates placements onto frontline territories, in amounts of
// one, half, or all remaining reserves.
func (gs *FrontierState) deployMoves(reserves int) []Move {
	var moves []Move
	amounts := []int{1, reserves / 2, reserves}

	for _, id := range gs.frontline() {
		seen := map[int]bool{}
		for _, amount := range amounts {
			if amount > 0 && amount <= reserves && !seen[amount] {
				seen[amount] = true
				moves = append(moves, FrontierMove{
					Kind:   DeployMove,
					To:     id,
					Forces: amount,
				})
			}
		}
	}
	return moves
}

// frontline returns the current side's territories bordering enemy ground.
// Falls back to all owned territories when none border the enemy.
func (gs *FrontierState) frontline() []int {
	var front, owned []int
	for id, owner := range gs.Ownership {
		if owner != gs.Current {
			continue
		}
		owned = append(owned, id)
		for _, adj := range adjacent[id] {
			if gs.Ownership[adj] != gs.Current {
				front = append(front, id)
				break
			}
		}
	}
	if len(front) == 0 {
		return owned
	}
	return front
}

func (gs *FrontierState) Play(move Move) State {
	fm, ok := move.(FrontierMove)
	if !ok {
		panic(fmt.Sprintf("unexpected move type %T", move))
	}
	newGs := gs.Copy()

	switch fm.Kind {
	case DeployMove:
		if newGs.Reserves[newGs.Current] < fm.Forces || fm.Forces <= 0 {
			panic(fmt.Sprintf("illegal deploy of %d with %d in reserve", fm.Forces, newGs.Reserves[newGs.Current]))
		}
		if newGs.Ownership[fm.To] != newGs.Current {
			panic(fmt.Sprintf("illegal deploy to enemy territory %s", territoryNames[fm.To]))
		}
		newGs.Forces[fm.To] += fm.Forces
		newGs.Reserves[newGs.Current] -= fm.Forces

	case AttackMove:
		newGs.attack(fm)

	case PassMove:
		if newGs.Reserves[newGs.Current] > 0 {
			panic("illegal pass with reserves left to deploy")
		}
		newGs.Current = 1 - newGs.Current
		newGs.Reserves[newGs.Current] = newGs.reinforcement(newGs.Current)

	default:
		panic(fmt.Sprintf("unknown move kind %d", fm.Kind))
	}

	newGs.Won = newGs.checkWinner()
	return newGs
}

// attack resolves combat deterministically. The attacker commits all but one
// force: a committed force strictly larger than the garrison conquers the
// territory with the survivors; otherwise the attacker is beaten back and the
// garrison loses half the committed forces.
func (gs *FrontierState) attack(fm FrontierMove) {
	if gs.Ownership[fm.From] != gs.Current {
		panic(fmt.Sprintf("illegal attack from enemy territory %s", territoryNames[fm.From]))
	}
	if gs.Ownership[fm.To] == gs.Current {
		panic(fmt.Sprintf("illegal attack on own territory %s", territoryNames[fm.To]))
	}
	if !areAdjacent(fm.From, fm.To) {
		panic(fmt.Sprintf("illegal attack between non-adjacent territories %s and %s", territoryNames[fm.From], territoryNames[fm.To]))
	}
	committed := gs.Forces[fm.From] - 1
	if committed < 1 {
		panic(fmt.Sprintf("illegal attack from %s with no spare forces", territoryNames[fm.From]))
	}

	defending := gs.Forces[fm.To]
	gs.Forces[fm.From] = 1
	if committed > defending {
		gs.Ownership[fm.To] = gs.Current
		gs.Forces[fm.To] = committed - defending
	} else {
		gs.Forces[fm.To] = max(1, defending-committed/2)
	}
}

func areAdjacent(a, b int) bool {
	for _, adj := range adjacent[a] {
		if adj == b {
			return true
		}
	}
	return false
}

// reinforcement calculates the reserves a side receives at the start of its
// turn.
func (gs *FrontierState) reinforcement(side int) int {
	owned := 0
	for _, owner := range gs.Ownership {
		if owner == side {
			owned++
		}
	}
	if owned == 0 {
		return 0
	}
	return max(3, owned/3)
}

func (gs *FrontierState) checkWinner() string {
	owner := gs.Ownership[0]
	for _, o := range gs.Ownership[1:] {
		if o != owner {
			return ""
		}
	}
	return sides[owner]
}

func (gs *FrontierState) Snapshot() map[string]any {
	territories := make([]map[string]any, len(territoryNames))
	for id, name := range territoryNames {
		territories[id] = map[string]any{
			"name":   name,
			"owner":  sides[gs.Ownership[id]],
			"forces": gs.Forces[id],
		}
	}
	return map[string]any{
		"side_to_move": gs.Player(),
		"reserves": map[string]int{
			SideNorth: gs.Reserves[0],
			SideSouth: gs.Reserves[1],
		},
		"territories": territories,
	}
}

// EvaluateForces tallies each side's territories and forces to produce a
// relative score between -1 and 1 from the side to move's perspective.
func EvaluateForces(s State) float64 {
	gs, ok := s.(*FrontierState)
	if !ok {
		panic("unexpected state type")
	}

	territories := [2]float64{}
	forces := [2]float64{}
	for id, owner := range gs.Ownership {
		territories[owner]++
		forces[owner] += float64(gs.Forces[id])
	}
	forces[0] += float64(gs.Reserves[0])
	forces[1] += float64(gs.Reserves[1])

	current := gs.Current
	opponent := 1 - current
	territoryScore := normalize(territories[current], territories[opponent])
	forceScore := normalize(forces[current], forces[opponent])

	return (territoryScore + forceScore) / 2.0
}

// normalize converts two tallies into a single score between -1 and 1.
func normalize(value float64, otherValue float64) float64 {
	total := value + otherValue
	if total == 0 {
		return 0
	}
	return (value - otherValue) / total
}
