package board

import "math/rand"

// Selector picks one of the legal moves. moves is sorted by UCI text.
type Selector interface {
	Select(moves []Move, m Mover, rng *rand.Rand) (Move, bool)
	Name() string
}

// RandomSelector picks uniformly.
type RandomSelector struct{}

func (RandomSelector) Name() string { return "random" }

func (RandomSelector) Select(moves []Move, _ Mover, rng *rand.Rand) (Move, bool) {
	if len(moves) == 0 {
		return Move{}, false
	}
	return moves[rng.Intn(len(moves))], true
}

// WeightedSelector prefers captures and checks with a probability that grows with the mover's FS.
type WeightedSelector struct {
	Base  float64 // preference at FS 5
	PerFS float64
}

func DefaultSelector() WeightedSelector {
	return WeightedSelector{Base: 0.35, PerFS: 0.05}
}

func (WeightedSelector) Name() string { return "weighted" }

func (s WeightedSelector) Select(moves []Move, m Mover, rng *rand.Rand) (Move, bool) {
	if len(moves) == 0 {
		return Move{}, false
	}
	p := s.Base + s.PerFS*float64(m.FS-5)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	// The preference roll is drawn even when no tactical move exists.
	prefer := rng.Float64() < p
	var tactical []Move
	if prefer {
		for _, mv := range moves {
			if mv.Capture || mv.Check || mv.Promotion {
				tactical = append(tactical, mv)
			}
		}
	}
	if len(tactical) > 0 {
		return tactical[rng.Intn(len(tactical))], true
	}
	return moves[rng.Intn(len(moves))], true
}
