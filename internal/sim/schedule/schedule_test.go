package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/board/boardtest"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

var roles = []model.Role{
	model.RoleFL, model.RoleVG, model.RoleEN, model.RoleRG,
	model.RoleGO, model.RolePO, model.RoleSV, model.RoleVG,
}

func newTeam(t *testing.T, id string, rs []model.Role) *model.Team {
	t.Helper()
	team := &model.Team{ID: id, Name: "Team " + id}
	for i, r := range rs {
		c, err := model.NewCharacter(fmt.Sprintf("%s-%d", id, i), "", id, r, model.DefaultAttributes(), nil)
		if err != nil {
			t.Fatalf("character: %v", err)
		}
		team.Active = append(team.Active, c)
	}
	return team
}

func fixtures(t *testing.T, n int) []Fixture {
	t.Helper()
	var out []Fixture
	for i := 0; i < n; i++ {
		out = append(out, Fixture{
			TeamA: newTeam(t, fmt.Sprintf("H%d", i), roles),
			TeamB: newTeam(t, fmt.Sprintf("V%d", i), roles),
		})
	}
	return out
}

func shortTuning() tuning.Tuning {
	tune := tuning.Defaults()
	tune.Match.MaxRounds = 4
	return tune
}

func scripted() board.Adapter { return &boardtest.Adapter{} }

func TestMatchIDAndSeed_Stable(t *testing.T) {
	a := MatchID("league", 1, 0, "H", "V")
	if a != MatchID("league", 1, 0, "H", "V") {
		t.Fatalf("match id not stable")
	}
	if a == MatchID("league", 2, 0, "H", "V") || a == MatchID("league", 1, 1, "H", "V") {
		t.Fatalf("match id must differ per day and slot")
	}
	if s := SeedFor(a); s < 0 || s != SeedFor(a) {
		t.Fatalf("bad seed %d", s)
	}
}

func TestRunDay_RejectsSharedCharacter(t *testing.T) {
	fx := fixtures(t, 2)
	fx[1].TeamB = fx[0].TeamA
	r := NewRunner(Config{League: "l", Tuning: shortTuning(), NewAdapter: scripted}, nil, nil)
	if _, err := r.RunDay(context.Background(), 1, fx); !errors.Is(err, ErrSharedCharacter) {
		t.Fatalf("expected ErrSharedCharacter, got %v", err)
	}
}

func TestRunDay_FailureIsIsolated(t *testing.T) {
	fx := fixtures(t, 3)
	fx[1].TeamA = newTeam(t, "broken", roles[1:])
	r := NewRunner(Config{League: "l", Tuning: shortTuning(), NewAdapter: scripted, Parallel: 3}, nil, nil)
	sum, err := r.RunDay(context.Background(), 1, fx)
	if err != nil {
		t.Fatalf("run day: %v", err)
	}
	if sum.Failed != 1 || len(sum.Outcomes) != 3 {
		t.Fatalf("expected 1 failure of 3, got %d of %d", sum.Failed, len(sum.Outcomes))
	}
	if !errors.Is(sum.Outcomes[1].Err, match.ErrConfig) {
		t.Fatalf("expected config error, got %v", sum.Outcomes[1].Err)
	}
	for _, i := range []int{0, 2} {
		o := sum.Outcomes[i]
		if o.Err != nil || o.Result == nil || o.Result.Rounds != 4 {
			t.Fatalf("outcome %d: %+v", i, o)
		}
		if o.Result.MatchID != o.Manifest.MatchID || o.Manifest.Index != i {
			t.Fatalf("outcome %d out of order", i)
		}
	}
	if _, ok := r.Carryover()["broken-0"]; ok {
		t.Fatalf("failed match must not bank match state for its characters")
	}
}

func TestRunDay_HomeByDayParity(t *testing.T) {
	r := NewRunner(Config{League: "l", Tuning: shortTuning(), NewAdapter: scripted}, nil, nil)
	fx := fixtures(t, 1)
	sum, err := r.RunDay(context.Background(), 2, fx)
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	if got := sum.Outcomes[0].Manifest.HomeTeam; got != "H0" {
		t.Fatalf("expected team A at home on even day, got %s", got)
	}
	sum, err = r.RunDay(context.Background(), 3, fx)
	if err != nil {
		t.Fatalf("day 3: %v", err)
	}
	if got := sum.Outcomes[0].Manifest.HomeTeam; got != "V0" {
		t.Fatalf("expected team B at home on odd day, got %s", got)
	}
	if len(sum.Outcomes[0].Manifest.Carry) == 0 {
		t.Fatalf("expected day 3 to start from banked state")
	}
}

func TestRunDay_ParallelismDoesNotChangeResults(t *testing.T) {
	run := func(parallel int) []byte {
		r := NewRunner(Config{
			League:     "l",
			Tuning:     tuning.Defaults(),
			NewAdapter: func() board.Adapter { return board.NewChessAdapter(board.DefaultSelector()) },
			Parallel:   parallel,
		}, nil, nil)
		var all []*match.MatchResult
		for day := 1; day <= 2; day++ {
			sum, err := r.RunDay(context.Background(), day, fixtures(t, 3))
			if err != nil {
				t.Fatalf("day %d: %v", day, err)
			}
			for _, o := range sum.Outcomes {
				if o.Err != nil {
					t.Fatalf("match failed: %v", o.Err)
				}
				all = append(all, o.Result)
			}
		}
		b, err := json.Marshal(struct {
			Results  []*match.MatchResult
			Injuries any
		}{all, r.Book().Records()})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}
	if string(run(1)) != string(run(4)) {
		t.Fatalf("results depend on parallelism")
	}
}

type recorder struct {
	mu     sync.Mutex
	begun  map[string]int
	rounds map[string]int
	ended  int
}

func (r *recorder) Begin(m Manifest) ([]match.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begun[m.MatchID]++
	return []match.Sink{match.SinkFunc(func(e match.RoundLogEntry) {
		r.mu.Lock()
		r.rounds[e.MatchID]++
		r.mu.Unlock()
	})}, nil
}

func (r *recorder) End(Manifest, *match.MatchResult, error) error {
	r.mu.Lock()
	r.ended++
	r.mu.Unlock()
	return nil
}

func TestRunDay_RecorderAndStore(t *testing.T) {
	rec := &recorder{begun: map[string]int{}, rounds: map[string]int{}}
	st := newMemStore()
	r := NewRunner(Config{
		League:     "l",
		Tuning:     shortTuning(),
		NewAdapter: scripted,
		Parallel:   2,
		Recorder:   rec,
		Store:      st,
	}, nil, nil)
	fx := fixtures(t, 2)
	sum, err := r.RunDay(context.Background(), 1, fx)
	if err != nil {
		t.Fatalf("run day: %v", err)
	}
	if rec.ended != 2 || len(rec.begun) != 2 {
		t.Fatalf("expected 2 matches recorded, got begun=%d ended=%d", len(rec.begun), rec.ended)
	}
	for _, o := range sum.Outcomes {
		if rec.rounds[o.Manifest.MatchID] != 4 {
			t.Fatalf("expected 4 rounds for %s, got %d", o.Manifest.MatchID, rec.rounds[o.Manifest.MatchID])
		}
	}
	id := fx[0].TeamA.Active[1].ID
	banked, ok := st.stamina[id]
	if !ok {
		t.Fatalf("expected stamina checkpoint for %s", id)
	}
	var final float64
	for _, cr := range sum.Outcomes[0].Result.CharacterResults {
		if cr.CharacterID == id {
			final = cr.FinalStamina
		}
	}
	want := final + tuning.Defaults().Stamina.DayRecovery
	if want > 100 {
		want = 100
	}
	if banked != want {
		t.Fatalf("expected banked stamina %v after day recovery, got %v", want, banked)
	}
	if _, ok := st.morale[id]; !ok {
		t.Fatalf("expected morale checkpoint")
	}
}

type memStore struct {
	mu       sync.Mutex
	injuries map[string]model.InjuryRecord
	stamina  map[string]float64
	morale   map[string]float64
}

func newMemStore() *memStore {
	return &memStore{injuries: map[string]model.InjuryRecord{}, stamina: map[string]float64{}, morale: map[string]float64{}}
}

func (m *memStore) LoadInjury(_ context.Context, id string) (model.InjuryRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.injuries[id]
	return r, ok, nil
}

func (m *memStore) SaveInjury(_ context.Context, r model.InjuryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injuries[r.CharacterID] = r
	return nil
}

func (m *memStore) DeleteInjury(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.injuries, id)
	return nil
}

func (m *memStore) LoadStamina(_ context.Context, id string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.stamina[id]
	return v, ok, nil
}

func (m *memStore) SaveStamina(_ context.Context, id string, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamina[id] = v
	return nil
}

func (m *memStore) LoadMorale(_ context.Context, id string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.morale[id]
	return v, ok, nil
}

func (m *memStore) SaveMorale(_ context.Context, id string, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.morale[id] = v
	return nil
}

func TestRunDay_DayEndHealing(t *testing.T) {
	tune := shortTuning()
	tune.Healing.DayAttempt = true
	tune.Healing.MinChance, tune.Healing.MaxChance = 1, 1

	fx := fixtures(t, 1)
	injured := fx[0].TeamA.Active[2]
	book := ledger.NewInjuryBook()
	book.Assign(injured.Clone(), model.SeverityMinor, 3, "test")

	r := NewRunner(Config{League: "l", Tuning: tune, NewAdapter: scripted}, book, nil)
	sum, err := r.RunDay(context.Background(), 1, fx)
	if err != nil {
		t.Fatalf("run day: %v", err)
	}
	found := false
	for _, id := range sum.Treated {
		found = found || id == injured.ID
	}
	if !found {
		t.Fatalf("expected %s to be treated, got %v", injured.ID, sum.Treated)
	}
	if rec, ok := r.Book().Get(injured.ID); ok && rec.MatchesRemaining >= 3 {
		t.Fatalf("expected healing and the matchday to shorten the injury, got %+v", rec)
	}
}

func TestRunDay_NewInjuryLastsIntoNextDay(t *testing.T) {
	tune := shortTuning()
	tune.Injury.LowHPThreshold = 1000
	tune.Injury.LowHPChance = 1

	r := NewRunner(Config{League: "l", Tuning: tune, NewAdapter: scripted}, nil, nil)
	sum, err := r.RunDay(context.Background(), 1, fixtures(t, 1))
	if err != nil {
		t.Fatalf("day 1: %v", err)
	}
	assigned := sum.Outcomes[0].Result.Injuries
	if len(assigned) == 0 {
		t.Fatalf("expected injuries on day 1")
	}
	if len(sum.Healed) != 0 {
		t.Fatalf("expected no heals on the day injuries happen, got %v", sum.Healed)
	}
	for _, want := range assigned {
		got, ok := r.Book().Get(want.CharacterID)
		if !ok || got.MatchesRemaining != want.MatchesRemaining {
			t.Fatalf("expected %s to keep %d matches, got %+v ok=%v", want.CharacterID, want.MatchesRemaining, got, ok)
		}
	}

	sum2, err := r.RunDay(context.Background(), 2, fixtures(t, 1))
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	carried := map[string]bool{}
	for _, rec := range sum2.Outcomes[0].Manifest.Injuries {
		carried[rec.CharacterID] = true
	}
	for _, want := range assigned {
		if !carried[want.CharacterID] {
			t.Fatalf("expected %s to start day 2 injured", want.CharacterID)
		}
	}
}

func TestRunDay_FieldLeaderBanksAboveBaseCap(t *testing.T) {
	st := newMemStore()
	tune := shortTuning()
	r := NewRunner(Config{League: "l", Tuning: tune, NewAdapter: scripted, Store: st}, nil, nil)
	fx := fixtures(t, 1)
	sum, err := r.RunDay(context.Background(), 1, fx)
	if err != nil {
		t.Fatalf("day 1: %v", err)
	}
	fl := fx[0].TeamA.Active[0]
	var final float64
	for _, cr := range sum.Outcomes[0].Result.CharacterResults {
		if cr.CharacterID == fl.ID {
			final = cr.FinalStamina
		}
	}
	_, flCap := ledger.New(tune, nil, ledger.Options{}).Caps(model.RoleFL)
	want := math.Min(final+tune.Stamina.DayRecovery, flCap)
	if want <= 100 {
		t.Fatalf("expected FL to end the day above the base cap, final=%v", final)
	}
	if st.stamina[fl.ID] != want {
		t.Fatalf("expected FL banked at %v, got %v", want, st.stamina[fl.ID])
	}

	sum2, err := r.RunDay(context.Background(), 2, fixtures(t, 1))
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	co, ok := sum2.Outcomes[0].Manifest.Carry[fl.ID]
	if !ok || co.Stamina == nil || *co.Stamina != want {
		t.Fatalf("expected day 2 to carry %v for %s, got %+v", want, fl.ID, co)
	}
}
