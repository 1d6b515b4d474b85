// Package schedule runs a matchday: independent matches in parallel, then a sequential merge of
// the cross-match ledgers in schedule order.
package schedule

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/match/traits"
	"metaleague.ai/internal/sim/roster"
	"metaleague.ai/internal/sim/tuning"
)

var ErrSharedCharacter = errors.New("character scheduled in two matches")

var matchNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://metaleague.ai/matches"))

// MatchID is stable for a league, day, slot and pairing.
func MatchID(league string, day, index int, teamA, teamB string) string {
	return uuid.NewSHA1(matchNamespace, []byte(fmt.Sprintf("%s/%d/%d/%s/%s", league, day, index, teamA, teamB))).String()
}

// SeedFor derives a non-negative seed from a match id.
func SeedFor(matchID string) int64 {
	id, err := uuid.Parse(matchID)
	if err != nil {
		id = uuid.NewSHA1(matchNamespace, []byte(matchID))
	}
	return int64(binary.BigEndian.Uint64(id[8:]) & math.MaxInt64)
}

type Fixture struct {
	TeamA, TeamB *model.Team
	// Seed overrides the seed derived from the match id.
	Seed *int64
}

// Recorder observes matches. Begin runs on the match goroutine and must be safe for concurrent use.
type Recorder interface {
	Begin(m Manifest) ([]match.Sink, error)
	End(m Manifest, res *match.MatchResult, err error) error
}

type Config struct {
	League string
	Tuning tuning.Tuning
	// NewAdapter returns the board adapter for one match.
	NewAdapter func() board.Adapter
	Traits     traits.Resolver
	// Parallel bounds concurrently running matches; <= 0 means one.
	Parallel int
	// Store, when set, is read at day start and written at day end.
	Store    ledger.Store
	Recorder Recorder
	Strict   bool
	Logger   *log.Logger
}

type Outcome struct {
	Manifest Manifest
	Result   *match.MatchResult
	Err      error
	Elapsed  time.Duration
}

type Summary struct {
	Day      int
	Outcomes []Outcome
	Failed   int
	Healed   []string
	// Treated lists characters whose day-end healing roll succeeded.
	Treated  []string
	Elapsed  time.Duration
}

// Runner owns the cross-match ledgers across matchdays.
type Runner struct {
	cfg   Config
	book  *ledger.InjuryBook
	carry map[string]ledger.Carryover
	led   *ledger.Ledger
}

func NewRunner(cfg Config, book *ledger.InjuryBook, carry map[string]ledger.Carryover) *Runner {
	if book == nil {
		book = ledger.NewInjuryBook()
	}
	if carry == nil {
		carry = map[string]ledger.Carryover{}
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	return &Runner{
		cfg:   cfg,
		book:  book,
		carry: carry,
		led:   ledger.New(cfg.Tuning, cfg.Traits, ledger.Options{Strict: cfg.Strict, Logger: cfg.Logger}),
	}
}

func (r *Runner) Book() *ledger.InjuryBook               { return r.book }
func (r *Runner) Carryover() map[string]ledger.Carryover { return r.carry }

func (r *Runner) logf(format string, args ...any) {
	if r.cfg.Logger != nil {
		r.cfg.Logger.Printf(format, args...)
	}
}

// RunDay plays every fixture of day. A failing match is reported in its Outcome and does not stop
// the others. The returned error covers only day-level failures: shared characters, persistence,
// cancellation.
func (r *Runner) RunDay(ctx context.Context, day int, fixtures []Fixture) (*Summary, error) {
	start := time.Now()
	if err := checkDisjoint(fixtures); err != nil {
		return nil, err
	}
	var chars []*model.Character
	for _, fx := range fixtures {
		chars = append(chars, fx.TeamA.All()...)
		chars = append(chars, fx.TeamB.All()...)
	}
	if r.cfg.Store != nil {
		carry, err := ledger.LoadCarryover(ctx, r.cfg.Store, r.book, chars)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", day, err)
		}
		for id, c := range carry {
			if c.Stamina != nil || c.Morale != nil {
				r.carry[id] = c
			}
		}
	}

	manifests := make([]Manifest, len(fixtures))
	subs := make([]*ledger.InjuryBook, len(fixtures))
	for i, fx := range fixtures {
		manifests[i], subs[i] = r.prepare(day, i, fx)
	}

	outcomes := make([]Outcome, len(fixtures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for i := range fixtures {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.play(manifests[i], subs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prior := make(map[string]model.InjuryRecord, r.book.Len())
	for _, rec := range r.book.Records() {
		prior[rec.CharacterID] = rec
	}
	sum := &Summary{Day: day, Outcomes: outcomes}
	for i, o := range outcomes {
		if o.Err != nil {
			sum.Failed++
			r.logf("day=%d match=%s failed: %v", day, o.Manifest.MatchID, o.Err)
			continue
		}
		r.merge(fixtures[i], subs[i], o.Result)
	}
	sum.Healed = r.book.Advance(served(prior, r.book), nil)
	recovered, treated := r.recoverDay(day, chars)
	sum.Treated = treated
	if r.cfg.Store != nil {
		if err := ledger.SaveCheckpoint(ctx, r.cfg.Store, r.book, recovered); err != nil {
			return sum, fmt.Errorf("day %d checkpoint: %w", day, err)
		}
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}

// served lists the records that carried into the day unchanged or shortened. An injury assigned,
// worsened or lengthened during the day starts counting down on the next matchday.
func served(prior map[string]model.InjuryRecord, book *ledger.InjuryBook) []string {
	var ids []string
	for _, rec := range book.Records() {
		p, ok := prior[rec.CharacterID]
		if ok && p.Severity == rec.Severity && rec.MatchesRemaining <= p.MatchesRemaining {
			ids = append(ids, rec.CharacterID)
		}
	}
	return ids
}

func checkDisjoint(fixtures []Fixture) error {
	owner := map[string]int{}
	for i, fx := range fixtures {
		if fx.TeamA == nil || fx.TeamB == nil {
			return fmt.Errorf("fixture %d: missing team", i)
		}
		for _, t := range []*model.Team{fx.TeamA, fx.TeamB} {
			for _, c := range t.All() {
				if j, seen := owner[c.ID]; seen && j != i {
					return fmt.Errorf("%w: %s in fixtures %d and %d", ErrSharedCharacter, c.ID, j, i)
				}
				owner[c.ID] = i
			}
		}
	}
	return nil
}

// prepare snapshots what match i starts from. Team A is at home on even days, team B otherwise.
func (r *Runner) prepare(day, i int, fx Fixture) (Manifest, *ledger.InjuryBook) {
	id := MatchID(r.cfg.League, day, i, fx.TeamA.ID, fx.TeamB.ID)
	m := Manifest{
		MatchID: id,
		Day:     day,
		Index:   i,
		Seed:    SeedFor(id),
		TeamA:   roster.SpecOf(fx.TeamA),
		TeamB:   roster.SpecOf(fx.TeamB),
		Carry:   map[string]Carry{},
	}
	if fx.Seed != nil {
		m.Seed = *fx.Seed
	}
	if r.cfg.Tuning.Home.Enabled {
		m.HomeTeam = fx.TeamB.ID
		if day%2 == 0 {
			m.HomeTeam = fx.TeamA.ID
		}
	}
	var ids []string
	for _, t := range []*model.Team{fx.TeamA, fx.TeamB} {
		for _, c := range t.All() {
			ids = append(ids, c.ID)
			if co, ok := r.carry[c.ID]; ok {
				m.Carry[c.ID] = Carry{Stamina: co.Stamina, Morale: co.Morale}
			}
		}
	}
	sub := r.book.Subset(ids)
	m.Injuries = sub.Records()
	return m, sub
}

func (r *Runner) play(m Manifest, book *ledger.InjuryBook) (out Outcome) {
	start := time.Now()
	out.Manifest = m
	defer func() {
		if p := recover(); p != nil {
			out.Err = fmt.Errorf("match %s panicked: %v", m.MatchID, p)
		}
		out.Elapsed = time.Since(start)
		if r.cfg.Recorder != nil {
			if err := r.cfg.Recorder.End(m, out.Result, out.Err); err != nil && out.Err == nil {
				out.Err = err
			}
		}
	}()

	a, b, err := m.Teams()
	if err != nil {
		out.Err = err
		return out
	}
	_, carry := m.Ledgers()
	var sinks []match.Sink
	if r.cfg.Recorder != nil {
		if sinks, err = r.cfg.Recorder.Begin(m); err != nil {
			out.Err = err
			return out
		}
	}
	var adapter board.Adapter
	if r.cfg.NewAdapter != nil {
		adapter = r.cfg.NewAdapter()
	}
	res, err := match.Play(match.Config{
		MatchID:   m.MatchID,
		Seed:      m.Seed,
		Day:       m.Day,
		Tuning:    r.cfg.Tuning,
		Adapter:   adapter,
		Traits:    r.cfg.Traits,
		Injuries:  book,
		Carryover: carry,
		Strict:    r.cfg.Strict,
		Logger:    r.cfg.Logger,
		Sinks:     sinks,
	}, a, b)
	out.Result, out.Err = res, err
	return out
}

// merge folds one finished match back into the runner's ledgers.
func (r *Runner) merge(fx Fixture, sub *ledger.InjuryBook, res *match.MatchResult) {
	var ids []string
	for _, t := range []*model.Team{fx.TeamA, fx.TeamB} {
		for _, c := range t.All() {
			ids = append(ids, c.ID)
		}
	}
	r.book.Replace(sub, ids)
	for _, cr := range res.CharacterResults {
		st, mo := cr.FinalStamina, cr.FinalMorale
		r.carry[cr.CharacterID] = ledger.Carryover{Stamina: &st, Morale: &mo}
	}
}

// recoverDay applies day recovery to every character with banked state and returns them carrying
// the new values, sorted by id. With healing.day_attempt set, injured characters first spend stamina
// on one healing roll from a per-day seeded stream.
func (r *Runner) recoverDay(day int, chars []*model.Character) ([]*model.Character, []string) {
	out := make([]*model.Character, 0, len(chars))
	for _, c := range chars {
		co, ok := r.carry[c.ID]
		if !ok {
			continue
		}
		cp := c.Clone()
		cp.MaxHP, cp.MaxStamina = r.led.Caps(cp.Role)
		cp.HP = cp.MaxHP
		if co.Stamina != nil {
			cp.Stamina = math.Min(*co.Stamina, cp.MaxStamina)
		}
		if co.Morale != nil {
			cp.Morale = *co.Morale
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	var treated []string
	if r.cfg.Tuning.Healing.DayAttempt {
		id := MatchID(r.cfg.League, day, -1, "healing", "")
		ctx := matchctx.New(id, SeedFor(id), r.cfg.Logger)
		for _, cp := range out {
			if _, injured := r.book.Get(cp.ID); !injured {
				continue
			}
			res, err := r.led.AttemptHealing(cp, r.book, ctx)
			if err != nil {
				r.logf("day=%d healing skipped: %v", day, err)
				continue
			}
			if res.Success {
				treated = append(treated, cp.ID)
			}
		}
	}
	for _, cp := range out {
		r.led.DayRecovery(cp)
		st, mo := cp.Stamina, cp.Morale
		r.carry[cp.ID] = ledger.Carryover{Stamina: &st, Morale: &mo}
	}
	return out, treated
}
