// Package boardtest provides a scripted board.Adapter for match tests.
package boardtest

import (
	"math/rand"

	"metaleague.ai/internal/sim/board"
)

// Board is a fixed position. It never changes unless a test mutates it.
type Board struct {
	Pieces   []board.Placement
	Over     bool
	Outcome  board.Result
	Value    int
	Applied  []board.Move
	Openings []string
}

// Adapter hands out boards from Layout in creation order.
type Adapter struct {
	// Layout builds the i-th board. A nil Layout yields empty, never-ending boards.
	Layout func(i int) *Board
	Boards []*Board
}

func (a *Adapter) NewBoard(opening []string) (board.Handle, error) {
	var b *Board
	if a.Layout != nil {
		b = a.Layout(len(a.Boards))
	}
	if b == nil {
		b = &Board{}
	}
	b.Openings = append([]string(nil), opening...)
	a.Boards = append(a.Boards, b)
	return b, nil
}

func get(h board.Handle) *Board {
	b, _ := h.(*Board)
	return b
}

func (a *Adapter) IsGameOver(h board.Handle) bool {
	b := get(h)
	return b == nil || b.Over
}

func (a *Adapter) Result(h board.Handle) board.Result {
	if b := get(h); b != nil && b.Over {
		return b.Outcome
	}
	return board.InProgress
}

func (a *Adapter) Material(h board.Handle) int {
	if b := get(h); b != nil {
		return b.Value
	}
	return 0
}

func (a *Adapter) LegalMoves(h board.Handle) []board.Move {
	if b := get(h); b == nil || b.Over {
		return nil
	}
	return []board.Move{{UCI: "0000"}}
}

func (a *Adapter) SelectMove(h board.Handle, _ board.Mover, _ *rand.Rand) (board.Move, bool) {
	moves := a.LegalMoves(h)
	if len(moves) == 0 {
		return board.Move{}, false
	}
	return moves[0], true
}

func (a *Adapter) ApplyMove(h board.Handle, mv board.Move) error {
	b := get(h)
	if b == nil {
		return board.ErrBadHandle
	}
	b.Applied = append(b.Applied, mv)
	return nil
}

func (a *Adapter) Occupied(h board.Handle) []board.Placement {
	if b := get(h); b != nil {
		return append([]board.Placement(nil), b.Pieces...)
	}
	return nil
}

// Piece places kind on the named square ("e4").
func Piece(square string, kind board.PieceKind, white bool) board.Placement {
	sq := int(square[0]-'a') + 8*int(square[1]-'1')
	return board.Placement{Square: sq, Kind: kind, White: white}
}
