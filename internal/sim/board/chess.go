package board

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/notnil/chess"
)

// ChessAdapter implements Adapter on github.com/notnil/chess.
type ChessAdapter struct {
	selector Selector
}

func NewChessAdapter(sel Selector) *ChessAdapter {
	if sel == nil {
		sel = DefaultSelector()
	}
	return &ChessAdapter{selector: sel}
}

type chessBoard struct {
	game *chess.Game
}

// NewBoard starts a game and plays the opening. Opening moves that do not parse or are
// illegal in the current position are skipped.
func (a *ChessAdapter) NewBoard(opening []string) (Handle, error) {
	b := &chessBoard{game: chess.NewGame()}
	for _, san := range opening {
		if b.game.Outcome() != chess.NoOutcome {
			break
		}
		_ = b.game.MoveStr(san)
	}
	return b, nil
}

func (a *ChessAdapter) board(h Handle) (*chessBoard, error) {
	b, ok := h.(*chessBoard)
	if !ok || b == nil || b.game == nil {
		return nil, ErrBadHandle
	}
	return b, nil
}

func (a *ChessAdapter) IsGameOver(h Handle) bool {
	b, err := a.board(h)
	if err != nil {
		return true
	}
	return b.game.Outcome() != chess.NoOutcome
}

func (a *ChessAdapter) Result(h Handle) Result {
	b, err := a.board(h)
	if err != nil {
		return InProgress
	}
	switch b.game.Outcome() {
	case chess.WhiteWon:
		return WhiteMates
	case chess.BlackWon:
		return BlackMates
	case chess.Draw:
		switch b.game.Method() {
		case chess.Stalemate:
			return Stalemate
		case chess.InsufficientMaterial:
			return InsufficientMaterial
		}
		return DrawOther
	}
	return InProgress
}

func (a *ChessAdapter) Material(h Handle) int {
	total := 0
	for _, p := range a.Occupied(h) {
		if p.White {
			total += p.Kind.Value()
		} else {
			total -= p.Kind.Value()
		}
	}
	return total
}

func (a *ChessAdapter) LegalMoves(h Handle) []Move {
	b, err := a.board(h)
	if err != nil || b.game.Outcome() != chess.NoOutcome {
		return nil
	}
	valid := b.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, m := range valid {
		out = append(out, Move{
			UCI:       m.String(),
			Capture:   m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
			Check:     m.HasTag(chess.Check),
			Promotion: m.Promo() != chess.NoPieceType,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UCI < out[j].UCI })
	return out
}

func (a *ChessAdapter) SelectMove(h Handle, m Mover, rng *rand.Rand) (Move, bool) {
	return a.selector.Select(a.LegalMoves(h), m, rng)
}

func (a *ChessAdapter) ApplyMove(h Handle, mv Move) error {
	b, err := a.board(h)
	if err != nil {
		return err
	}
	for _, m := range b.game.ValidMoves() {
		if m.String() != mv.UCI {
			continue
		}
		if err := b.game.Move(m); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIllegalMove, mv.UCI, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrIllegalMove, mv.UCI)
}

func (a *ChessAdapter) Occupied(h Handle) []Placement {
	b, err := a.board(h)
	if err != nil {
		return nil
	}
	bd := b.game.Position().Board()
	var out []Placement
	for sq := 0; sq < 64; sq++ {
		p := bd.Piece(chess.Square(sq))
		if p == chess.NoPiece {
			continue
		}
		out = append(out, Placement{Square: sq, Kind: kindOf(p.Type()), White: p.Color() == chess.White})
	}
	return out
}

// plies is the number of half-moves played on the board, opening included.
func (a *ChessAdapter) plies(h Handle) int {
	b, err := a.board(h)
	if err != nil {
		return 0
	}
	return len(b.game.Moves())
}

func kindOf(t chess.PieceType) PieceKind {
	switch t {
	case chess.Pawn:
		return Pawn
	case chess.Knight:
		return Knight
	case chess.Bishop:
		return Bishop
	case chess.Rook:
		return Rook
	case chess.Queen:
		return Queen
	case chess.King:
		return King
	}
	return NoPiece
}
