package substitution

import (
	"testing"

	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

func newTeam(t *testing.T, l *ledger.Ledger, ldr []int, bench int) *model.Team {
	t.Helper()
	tm := &model.Team{ID: "A", Name: "Team A"}
	for i, v := range ldr {
		role := model.RoleVG
		if i == 0 {
			role = model.RoleFL
		}
		c, err := model.NewCharacter("a"+string(rune('0'+i)), "", "A", role, model.Attributes{LDR: v}, nil)
		if err != nil {
			t.Fatalf("character: %v", err)
		}
		c.Index = i
		l.Prepare(c, ledger.Carryover{})
		if i < len(ldr)-bench {
			tm.Active = append(tm.Active, c)
		} else {
			tm.Bench = append(tm.Bench, c)
		}
	}
	return tm
}

func TestCheck_PicksHighestLDRStable(t *testing.T) {
	l := ledger.New(tuning.Defaults(), nil, ledger.Options{Strict: true})
	tm := newTeam(t, l, []int{9, 6, 8, 8}, 0)
	tm.Active[0].IsKO = true
	ctx := matchctx.New("m", 1, nil)
	sub := New(l).Check(ctx, tm)
	if sub == nil || sub.SubstituteID != "a2" || sub.ReplacedID != "a0" {
		t.Fatalf("expected a2 (first of LDR 8) to replace a0, got %+v", sub)
	}
	if tm.Active[0].Role != model.RoleFLKO || tm.Active[2].Role != model.RoleFLSub {
		t.Fatalf("expected FL-KO / FL-SUB tags, got %s / %s", tm.Active[0].Role, tm.Active[2].Role)
	}
	s := tm.Active[2]
	if s.MaxHP != 112.5 || s.MaxStamina != 110 {
		t.Fatalf("expected half FL bonus caps 112.5/110, got %v/%v", s.MaxHP, s.MaxStamina)
	}
	if !s.HasTrait(LeadershipTrait) {
		t.Fatalf("expected leadership trait")
	}
	if tm.Active[1].Morale != 3 {
		t.Fatalf("expected ally morale 5-2=3, got %v", tm.Active[1].Morale)
	}
	if len(ctx.Substitutions) != 1 {
		t.Fatalf("expected substitution logged")
	}
}

func TestCheck_NeverPicksKOOrLeader(t *testing.T) {
	l := ledger.New(tuning.Defaults(), nil, ledger.Options{Strict: true})
	tm := newTeam(t, l, []int{5, 10, 3}, 0)
	tm.Active[0].IsKO = true
	tm.Active[1].IsKO = true
	sub := New(l).Check(matchctx.New("m", 1, nil), tm)
	if sub == nil || sub.SubstituteID != "a2" {
		t.Fatalf("expected a2, got %+v", sub)
	}
}

func TestCheck_NoEligibleLeavesRosterUnchanged(t *testing.T) {
	l := ledger.New(tuning.Defaults(), nil, ledger.Options{Strict: true})
	tm := newTeam(t, l, []int{5, 5}, 0)
	tm.Active[0].IsKO = true
	tm.Active[1].IsKO = true
	e := New(l)
	if sub := e.Check(matchctx.New("m", 1, nil), tm); sub != nil {
		t.Fatalf("expected no substitution, got %+v", sub)
	}
	if tm.Active[0].Role != model.RoleFL || tm.Active[1].Role != model.RoleVG {
		t.Fatalf("roster must be unchanged, got %s/%s", tm.Active[0].Role, tm.Active[1].Role)
	}
	if sub := e.Check(matchctx.New("m", 1, nil), tm); sub != nil {
		t.Fatalf("second check must be a no-op")
	}
}

func TestCheck_BenchSubstituteTakesSlot(t *testing.T) {
	l := ledger.New(tuning.Defaults(), nil, ledger.Options{Strict: true})
	tm := newTeam(t, l, []int{5, 4, 9}, 1)
	tm.Active[0].IsKO = true
	sub := New(l).Check(matchctx.New("m", 1, nil), tm)
	if sub == nil || sub.SubstituteID != "a2" {
		t.Fatalf("expected bench a2, got %+v", sub)
	}
	if len(tm.Active) != 2 || tm.Active[0].ID != "a2" || tm.Bench[0].ID != "a0" {
		t.Fatalf("expected a2 in the leader slot and a0 benched, got active=%s bench=%s", tm.Active[0].ID, tm.Bench[0].ID)
	}
}

func TestCheck_HealthyLeaderNoop(t *testing.T) {
	l := ledger.New(tuning.Defaults(), nil, ledger.Options{Strict: true})
	tm := newTeam(t, l, []int{5, 5}, 0)
	if sub := New(l).Check(matchctx.New("m", 1, nil), tm); sub != nil {
		t.Fatalf("expected no substitution, got %+v", sub)
	}
}
