package board

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrBadHandle   = errors.New("board: handle not owned by adapter")
	ErrIllegalMove = errors.New("board: illegal move")
)

// Handle is an opaque position owned by the Adapter that created it.
type Handle any

type Result int

const (
	InProgress Result = iota
	WhiteMates
	BlackMates
	Stalemate
	InsufficientMaterial
	DrawOther // repetition, move-count rules
)

func (r Result) String() string {
	switch r {
	case InProgress:
		return "in_progress"
	case WhiteMates:
		return "white_mates"
	case BlackMates:
		return "black_mates"
	case Stalemate:
		return "stalemate"
	case InsufficientMaterial:
		return "insufficient_material"
	case DrawOther:
		return "draw"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Decisive reports whether the game ended with a mate.
func (r Result) Decisive() bool { return r == WhiteMates || r == BlackMates }

type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceValue = [...]int{NoPiece: 0, Pawn: 1, Knight: 3, Bishop: 3, Rook: 5, Queen: 9, King: 0}

// Value is the material value of the piece kind.
func (k PieceKind) Value() int {
	if int(k) >= len(pieceValue) {
		return 0
	}
	return pieceValue[k]
}

// Placement is one occupied square. Square is 0..63 with a1=0, h8=63.
type Placement struct {
	Square int
	Kind   PieceKind
	White  bool
}

func (p Placement) IsPawn() bool { return p.Kind == Pawn }

// SquareName renders a square index in algebraic form ("e4").
func SquareName(sq int) string {
	if sq < 0 || sq > 63 {
		return "-"
	}
	return string([]byte{byte('a' + sq%8), byte('1' + sq/8)})
}

type Move struct {
	UCI       string `json:"uci"`
	Capture   bool   `json:"capture,omitempty"`
	Check     bool   `json:"check,omitempty"`
	Promotion bool   `json:"promotion,omitempty"`
}

// Mover is what move selection may know about the character owning the board.
type Mover struct {
	ID   string
	Role string
	FS   int
}

// Adapter wraps a chess-rules engine. Each character plays the side to move on its own board,
// one ply per round.
type Adapter interface {
	NewBoard(opening []string) (Handle, error)
	IsGameOver(h Handle) bool
	Result(h Handle) Result
	// Material is white minus black using P1 N3 B3 R5 Q9 K0.
	Material(h Handle) int
	LegalMoves(h Handle) []Move
	SelectMove(h Handle, m Mover, rng *rand.Rand) (Move, bool)
	ApplyMove(h Handle, mv Move) error
	// Occupied lists every occupied square in ascending square order.
	Occupied(h Handle) []Placement
}
