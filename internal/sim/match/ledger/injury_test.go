package ledger

import (
	"context"
	"errors"
	"testing"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
)

func TestInjuryBook_MajorLifecycle(t *testing.T) {
	book := NewInjuryBook()
	c, _ := model.NewCharacter("c1", "", "A", model.RoleVG, model.Attributes{}, nil)
	base := c.Attrs

	rec := book.Assign(c, model.SeverityMajor, 3, "ko")
	if rec.MatchesRemaining != 3 || c.Injury == nil {
		t.Fatalf("expected 3-match injury on character, got %+v", rec)
	}
	if c.Attrs.STR != base.STR-2 || c.Attrs.SPD != base.SPD-2 || c.Attrs.DUR != base.DUR-1 {
		t.Fatalf("expected MAJOR penalties applied, got %+v", c.Attrs)
	}

	for day := 1; day <= 2; day++ {
		if healed := book.AdvanceMatchday([]*model.Character{c}); len(healed) != 0 {
			t.Fatalf("day %d: unexpected heal %v", day, healed)
		}
	}
	if r, ok := book.Get("c1"); !ok || r.MatchesRemaining != 1 {
		t.Fatalf("expected 1 match remaining, got %+v ok=%v", r, ok)
	}
	healed := book.AdvanceMatchday([]*model.Character{c})
	if len(healed) != 1 || healed[0] != "c1" {
		t.Fatalf("expected c1 healed, got %v", healed)
	}
	if book.Len() != 0 || c.Injury != nil {
		t.Fatalf("expected record removed")
	}
	if c.Attrs != base {
		t.Fatalf("expected attributes restored to %+v, got %+v", base, c.Attrs)
	}
}

func TestInjuryBook_AdvanceOnlyListed(t *testing.T) {
	book := NewInjuryBook()
	a, _ := model.NewCharacter("a", "", "A", model.RoleVG, model.Attributes{}, nil)
	b, _ := model.NewCharacter("b", "", "A", model.RoleVG, model.Attributes{}, nil)
	book.Assign(a, model.SeverityMinor, 1, "ko")
	book.Assign(b, model.SeverityMinor, 1, "ko")

	healed := book.Advance([]string{"a", "missing"}, []*model.Character{a, b})
	if len(healed) != 1 || healed[0] != "a" {
		t.Fatalf("expected only a healed, got %v", healed)
	}
	if _, ok := book.Get("a"); ok || a.Injury != nil {
		t.Fatalf("expected a's record removed")
	}
	if r, ok := book.Get("b"); !ok || r.MatchesRemaining != 1 || b.Injury == nil {
		t.Fatalf("expected b untouched, got %+v ok=%v", r, ok)
	}
}

func TestInjuryBook_PenaltyFloorRevertsExactly(t *testing.T) {
	book := NewInjuryBook()
	c, _ := model.NewCharacter("c1", "", "A", model.RoleVG, model.Attributes{STR: 2, SPD: 1}, nil)
	base := c.Attrs

	rec := book.Assign(c, model.SeveritySevere, 5, "ko")
	if c.Attrs.STR != model.AttrMin || c.Attrs.SPD != model.AttrMin {
		t.Fatalf("expected penalties floored at %d, got %+v", model.AttrMin, c.Attrs)
	}
	if rec.Penalties[model.STR] != -1 {
		t.Fatalf("expected applied STR delta -1, got %d", rec.Penalties[model.STR])
	}
	if _, ok := rec.Penalties[model.SPD]; ok {
		t.Fatalf("expected no SPD delta at floor")
	}
	for i := 0; i < 5; i++ {
		book.AdvanceMatchday([]*model.Character{c})
	}
	if c.Attrs != base {
		t.Fatalf("expected exact revert to %+v, got %+v", base, c.Attrs)
	}
}

func TestInjuryBook_WorseReplacesLighterExtends(t *testing.T) {
	book := NewInjuryBook()
	c, _ := model.NewCharacter("c1", "", "A", model.RoleVG, model.Attributes{}, nil)
	base := c.Attrs

	book.Assign(c, model.SeverityModerate, 2, "ko")
	book.Assign(c, model.SeverityMinor, 4, "low_hp")
	rec, _ := book.Get("c1")
	if rec.Severity != model.SeverityModerate || rec.MatchesRemaining != 4 {
		t.Fatalf("expected MODERATE extended to 4, got %+v", rec)
	}
	if c.Attrs.SPD != base.SPD-1 || c.Attrs.STR != base.STR-1 {
		t.Fatalf("lighter injury must not stack penalties, got %+v", c.Attrs)
	}

	book.Assign(c, model.SeveritySevere, 5, "ko")
	rec, _ = book.Get("c1")
	if rec.Severity != model.SeveritySevere {
		t.Fatalf("expected SEVERE to replace, got %s", rec.Severity)
	}
	if c.Attrs.STR != base.STR-3 || c.Attrs.SPD != base.SPD-3 {
		t.Fatalf("expected only SEVERE penalties, got %+v", c.Attrs)
	}
}

func TestInjuryBook_ApplyToFreshCharacter(t *testing.T) {
	book := NewInjuryBook()
	book.Put(model.InjuryRecord{
		CharacterID:      "c1",
		Severity:         model.SeverityMinor,
		MatchesRemaining: 1,
		Penalties:        map[model.Attr]int{model.SPD: -1},
	})
	c, _ := model.NewCharacter("c1", "", "A", model.RoleVG, model.Attributes{}, nil)
	if !book.ApplyTo(c) {
		t.Fatalf("expected record applied")
	}
	if book.ApplyTo(c) {
		t.Fatalf("expected second apply to be refused")
	}
	if c.Attrs.SPD != model.AttrDefault-1 {
		t.Fatalf("expected SPD 4, got %d", c.Attrs.SPD)
	}
}

func TestRollInjury_OnlyKOOrLowHP(t *testing.T) {
	l := newTestLedger()
	ctx := matchctx.New("inj", 11, nil)
	book := NewInjuryBook()
	c := newTestCharacter(t, "c", model.RoleVG)
	l.Prepare(c, Carryover{})
	for i := 0; i < 100; i++ {
		if rec := l.RollInjury(c, book, ctx); rec != nil {
			t.Fatalf("healthy character injured: %+v", rec)
		}
	}

	injured := 0
	for i := 0; i < 200; i++ {
		fresh := newTestCharacter(t, "k", model.RoleVG)
		l.Prepare(fresh, Carryover{})
		fresh.IsKO = true
		if rec := l.RollInjury(fresh, NewInjuryBook(), ctx); rec != nil {
			injured++
			if rec.MatchesRemaining < 1 || rec.Cause != "ko" {
				t.Fatalf("bad record %+v", rec)
			}
		}
	}
	// 30% chance over 200 trials.
	if injured < 30 || injured > 90 {
		t.Fatalf("expected roughly 60 injuries, got %d", injured)
	}
}

func TestAttemptHealing(t *testing.T) {
	l := newTestLedger()
	ctx := matchctx.New("heal", 5, nil)
	book := NewInjuryBook()
	c := newTestCharacter(t, "c", model.RoleVG)
	l.Prepare(c, Carryover{})

	if _, err := l.AttemptHealing(c, book, ctx); !errors.Is(err, ErrNotInjured) {
		t.Fatalf("expected ErrNotInjured, got %v", err)
	}

	book.Assign(c, model.SeveritySevere, 5, "ko")
	c.Stamina = 40
	if _, err := l.AttemptHealing(c, book, ctx); !errors.Is(err, ErrInsufficientStamina) {
		t.Fatalf("expected ErrInsufficientStamina, got %v", err)
	}
	if c.Stamina != 40 {
		t.Fatalf("failed attempt must not spend stamina, got %v", c.Stamina)
	}

	c.Stamina = 100
	out, err := l.AttemptHealing(c, book, ctx)
	if err != nil {
		t.Fatalf("heal: %v", err)
	}
	if out.StaminaCost != 45 || c.Stamina != 55 {
		t.Fatalf("expected cost 45 leaving 55, got cost=%v stamina=%v", out.StaminaCost, c.Stamina)
	}
	if out.Chance != 0.2 {
		t.Fatalf("expected SEVERE chance 0.2, got %v", out.Chance)
	}
	want := 5
	if out.Success {
		want = 4
	}
	if out.MatchesRemaining != want {
		t.Fatalf("expected %d remaining, got %d", want, out.MatchesRemaining)
	}
}

type memStore struct {
	injuries map[string]model.InjuryRecord
	stamina  map[string]float64
	morale   map[string]float64
}

func newMemStore() *memStore {
	return &memStore{injuries: map[string]model.InjuryRecord{}, stamina: map[string]float64{}, morale: map[string]float64{}}
}

func (m *memStore) LoadInjury(_ context.Context, id string) (model.InjuryRecord, bool, error) {
	r, ok := m.injuries[id]
	return r, ok, nil
}
func (m *memStore) SaveInjury(_ context.Context, r model.InjuryRecord) error {
	m.injuries[r.CharacterID] = r
	return nil
}
func (m *memStore) DeleteInjury(_ context.Context, id string) error {
	delete(m.injuries, id)
	return nil
}
func (m *memStore) LoadStamina(_ context.Context, id string) (float64, bool, error) {
	v, ok := m.stamina[id]
	return v, ok, nil
}
func (m *memStore) SaveStamina(_ context.Context, id string, v float64) error {
	m.stamina[id] = v
	return nil
}
func (m *memStore) LoadMorale(_ context.Context, id string) (float64, bool, error) {
	v, ok := m.morale[id]
	return v, ok, nil
}
func (m *memStore) SaveMorale(_ context.Context, id string, v float64) error {
	m.morale[id] = v
	return nil
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	l := newTestLedger()
	book := NewInjuryBook()

	a := newTestCharacter(t, "a", model.RoleVG)
	b := newTestCharacter(t, "b", model.RoleEN)
	l.Prepare(a, Carryover{})
	l.Prepare(b, Carryover{})
	a.Stamina = 42
	b.Morale = 7
	book.Assign(a, model.SeverityModerate, 2, "ko")

	if err := SaveCheckpoint(ctx, st, book, []*model.Character{a, b}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := st.injuries["b"]; ok {
		t.Fatalf("uninjured character must not have a stored record")
	}

	book2 := NewInjuryBook()
	a2 := newTestCharacter(t, "a", model.RoleVG)
	b2 := newTestCharacter(t, "b", model.RoleEN)
	carry, err := LoadCarryover(ctx, st, book2, []*model.Character{a2, b2})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if book2.Len() != 1 {
		t.Fatalf("expected 1 injury loaded, got %d", book2.Len())
	}
	l.Prepare(a2, carry["a"])
	l.Prepare(b2, carry["b"])
	if a2.Stamina != 42 || b2.Morale != 7 {
		t.Fatalf("expected carried stamina 42 and morale 7, got %v/%v", a2.Stamina, b2.Morale)
	}

	book2.AdvanceMatchday(nil)
	book2.AdvanceMatchday(nil)
	if err := SaveCheckpoint(ctx, st, book2, []*model.Character{a2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := st.injuries["a"]; ok {
		t.Fatalf("healed injury must be deleted from the store")
	}
}

func TestMoraleHelpers(t *testing.T) {
	l := newTestLedger()
	team := &model.Team{ID: "A"}
	for i, r := range []model.Role{model.RoleFL, model.RoleVG, model.RoleSV} {
		c := newTestCharacter(t, string(rune('a'+i)), r)
		l.Prepare(c, Carryover{})
		team.Active = append(team.Active, c)
	}
	team.Active[0].Attrs.LDR = 10
	l.LeaderSynergy(team)
	if team.Active[1].Morale != 5.5 || team.Active[0].Morale != 5 {
		t.Fatalf("expected synergy +0.5 for non-leaders, got %v/%v", team.Active[1].Morale, team.Active[0].Morale)
	}
	l.AllyLeaderDown(team, team.Active[0])
	if team.Active[2].Morale != 3.5 {
		t.Fatalf("expected 3.5 after leader down, got %v", team.Active[2].Morale)
	}
	l.ApplyMatchOutcome(team.Active[2], OutcomeWin)
	if team.Active[2].Morale != 4.5 {
		t.Fatalf("expected 4.5 after win, got %v", team.Active[2].Morale)
	}
}

func TestInjuryBook_SubsetAndReplace(t *testing.T) {
	book := NewInjuryBook()
	book.Put(model.InjuryRecord{CharacterID: "a", Severity: model.SeverityMinor, MatchesRemaining: 1})
	book.Put(model.InjuryRecord{CharacterID: "b", Severity: model.SeverityMajor, MatchesRemaining: 3})

	sub := book.Subset([]string{"a", "c"})
	if sub.Len() != 1 {
		t.Fatalf("expected subset of 1, got %d", sub.Len())
	}
	sub.Put(model.InjuryRecord{CharacterID: "c", Severity: model.SeverityModerate, MatchesRemaining: 2})
	delete(sub.records, "a")

	book.Replace(sub, []string{"a", "c"})
	if _, ok := book.Get("a"); ok {
		t.Fatalf("expected a healed")
	}
	if rec, ok := book.Get("c"); !ok || rec.Severity != model.SeverityModerate {
		t.Fatalf("expected c injured, got %+v", rec)
	}
	if rec, ok := book.Get("b"); !ok || rec.MatchesRemaining != 3 {
		t.Fatalf("expected b untouched, got %+v", rec)
	}
}
