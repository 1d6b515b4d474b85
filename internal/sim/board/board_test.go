package board

import (
	"errors"
	"math/rand"
	"testing"
)

func TestChessAdapter_StartPosition(t *testing.T) {
	a := NewChessAdapter(RandomSelector{})
	h, err := a.NewBoard(nil)
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	if a.IsGameOver(h) || a.Result(h) != InProgress {
		t.Fatalf("fresh board must be in progress")
	}
	if got := a.Material(h); got != 0 {
		t.Fatalf("expected balanced material, got %d", got)
	}
	if got := len(a.LegalMoves(h)); got != 20 {
		t.Fatalf("expected 20 legal moves, got %d", got)
	}
	occ := a.Occupied(h)
	if len(occ) != 32 {
		t.Fatalf("expected 32 pieces, got %d", len(occ))
	}
	if occ[0].Square != 0 || occ[0].Kind != Rook || !occ[0].White {
		t.Fatalf("expected white rook on a1 first, got %+v", occ[0])
	}
}

func TestChessAdapter_LegalMovesSorted(t *testing.T) {
	a := NewChessAdapter(nil)
	h, _ := a.NewBoard(nil)
	moves := a.LegalMoves(h)
	for i := 1; i < len(moves); i++ {
		if moves[i-1].UCI >= moves[i].UCI {
			t.Fatalf("moves not sorted at %d: %s >= %s", i, moves[i-1].UCI, moves[i].UCI)
		}
	}
}

func TestChessAdapter_OpeningSkipsIllegal(t *testing.T) {
	a := NewChessAdapter(nil)
	h, _ := a.NewBoard([]string{"e4", "Qh5", "e5"})
	if got := a.plies(h); got != 2 {
		t.Fatalf("expected 2 plies (e4 e5), got %d", got)
	}
}

func TestChessAdapter_FoolsMate(t *testing.T) {
	a := NewChessAdapter(nil)
	h, _ := a.NewBoard(nil)
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if err := a.ApplyMove(h, Move{UCI: uci}); err != nil {
			t.Fatalf("apply %s: %v", uci, err)
		}
	}
	if !a.IsGameOver(h) || a.Result(h) != BlackMates {
		t.Fatalf("expected black mate, got %v", a.Result(h))
	}
	if a.LegalMoves(h) != nil {
		t.Fatalf("finished board must have no moves")
	}
	if _, ok := a.SelectMove(h, Mover{}, rand.New(rand.NewSource(1))); ok {
		t.Fatalf("finished board must not select a move")
	}
}

func TestChessAdapter_IllegalMove(t *testing.T) {
	a := NewChessAdapter(nil)
	h, _ := a.NewBoard(nil)
	if err := a.ApplyMove(h, Move{UCI: "e2e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if err := a.ApplyMove("nope", Move{UCI: "e2e4"}); !errors.Is(err, ErrBadHandle) {
		t.Fatalf("expected ErrBadHandle, got %v", err)
	}
}

func TestChessAdapter_SameSeedSameGame(t *testing.T) {
	play := func() string {
		a := NewChessAdapter(DefaultSelector())
		rng := rand.New(rand.NewSource(42))
		h, _ := a.NewBoard(OpeningFor("SV", rng))
		var line string
		for i := 0; i < 30; i++ {
			mv, ok := a.SelectMove(h, Mover{FS: 7}, rng)
			if !ok {
				break
			}
			if err := a.ApplyMove(h, mv); err != nil {
				t.Fatalf("apply: %v", err)
			}
			line += mv.UCI + " "
		}
		return line
	}
	if a, b := play(), play(); a != b {
		t.Fatalf("same seed produced different games:\n%s\n%s", a, b)
	}
}

func TestWeightedSelector_PrefersCaptures(t *testing.T) {
	moves := []Move{{UCI: "a2a3"}, {UCI: "b2b3"}, {UCI: "e4d5", Capture: true}}
	sel := WeightedSelector{Base: 1}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		mv, ok := sel.Select(moves, Mover{FS: 5}, rng)
		if !ok || mv.UCI != "e4d5" {
			t.Fatalf("expected capture, got %+v", mv)
		}
	}
}

func TestSquareName(t *testing.T) {
	if got := SquareName(28); got != "e4" {
		t.Fatalf("expected e4, got %s", got)
	}
	if got := SquareName(63); got != "h8" {
		t.Fatalf("expected h8, got %s", got)
	}
}
