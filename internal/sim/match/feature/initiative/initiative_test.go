package initiative

import (
	"math"
	"reflect"
	"testing"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

func team(t *testing.T, id string, n int) *model.Team {
	t.Helper()
	tm := &model.Team{ID: id}
	for i := 0; i < n; i++ {
		role := model.RoleVG
		if i == 0 {
			role = model.RoleFL
		}
		c, err := model.NewCharacter(id+string(rune('0'+i)), "", id, role, model.Attributes{}, nil)
		if err != nil {
			t.Fatalf("character: %v", err)
		}
		c.Index = i
		tm.Active = append(tm.Active, c)
	}
	return tm
}

func TestRoll_AlternatesTeams(t *testing.T) {
	a, b := team(t, "A", 4), team(t, "B", 3)
	o := New(tuning.Defaults().Initiative).Roll(matchctx.New("m", 5, nil), a, b)
	if len(o.Characters) != 7 {
		t.Fatalf("expected 7 characters, got %d", len(o.Characters))
	}
	for i := 0; i < 6; i++ {
		if o.Characters[i].TeamID == o.Characters[i+1].TeamID {
			t.Fatalf("expected alternation at %d: %v", i, o.IDs())
		}
	}
	if o.Characters[0].TeamID != o.First {
		t.Fatalf("first character must belong to the first team")
	}
}

func TestRoll_SameSeedSameOrder(t *testing.T) {
	a, b := team(t, "A", 8), team(t, "B", 8)
	r := New(tuning.Defaults().Initiative)
	x := r.Roll(matchctx.New("m", 9, nil), a, b)
	y := r.Roll(matchctx.New("m", 9, nil), a, b)
	if !reflect.DeepEqual(x.IDs(), y.IDs()) || x.First != y.First {
		t.Fatalf("same seed produced different orders: %v vs %v", x.IDs(), y.IDs())
	}
}

func TestRoll_CoinFlipIsFair(t *testing.T) {
	a, b := team(t, "A", 2), team(t, "B", 2)
	r := New(tuning.Defaults().Initiative)
	ctx := matchctx.New("m", 1, nil)
	firstA := 0
	for i := 0; i < 2000; i++ {
		if r.Roll(ctx, a, b).First == "A" {
			firstA++
		}
	}
	if firstA < 900 || firstA > 1100 {
		t.Fatalf("expected roughly even first-team split, got %d/2000", firstA)
	}
}

func TestRoll_WeightedFavoursStrongerTeam(t *testing.T) {
	tune := tuning.Defaults().Initiative
	tune.Weighted = true
	a, b := team(t, "A", 2), team(t, "B", 2)
	for _, c := range b.Active {
		c.IsKO = true
	}
	r := New(tune)
	ctx := matchctx.New("m", 1, nil)
	for i := 0; i < 100; i++ {
		if r.Roll(ctx, a, b).First != "A" {
			t.Fatalf("team with zero weight must never go first")
		}
	}
}

func TestWeight(t *testing.T) {
	tune := tuning.Defaults().Initiative
	a := team(t, "A", 2)
	r := New(tune)
	// FL: 15*1.5 = 22.5, VG: 15.
	if got := r.Weight(a, matchctx.TeamMomentum{State: model.MomentumStable}); got != 37.5 {
		t.Fatalf("expected 37.5, got %v", got)
	}
	if got := r.Weight(a, matchctx.TeamMomentum{State: model.MomentumCrash}); math.Abs(got-30) > 1e-9 {
		t.Fatalf("expected 30 when crashed, got %v", got)
	}
}
