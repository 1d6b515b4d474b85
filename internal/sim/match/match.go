// Package match runs one match: setup, the round loop and result assembly.
package match

import (
	"errors"
	"fmt"
	"log"
	"math"

	"metaleague.ai/internal/protocol"
	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/match/feature/convergence"
	"metaleague.ai/internal/sim/match/feature/initiative"
	"metaleague.ai/internal/sim/match/feature/loss"
	"metaleague.ai/internal/sim/match/feature/momentum"
	"metaleague.ai/internal/sim/match/feature/substitution"
	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/match/traits"
	"metaleague.ai/internal/sim/tuning"
)

type State string

const (
	StateInitializing    State = "initializing"
	StateRoundInProgress State = "round_in_progress"
	StateTerminated      State = "terminated"
)

// Sink receives every round log entry as soon as the round is resolved.
type Sink interface {
	Round(entry RoundLogEntry)
}

type SinkFunc func(entry RoundLogEntry)

func (f SinkFunc) Round(entry RoundLogEntry) { f(entry) }

type Config struct {
	MatchID string
	Seed    int64
	Day     int
	Tuning  tuning.Tuning

	Adapter board.Adapter
	Traits  traits.Resolver
	// Roll overrides the combat roll; nil uses convergence.CombatRoll.
	Roll convergence.RollFunc

	// Injuries is the cross-match injury book. Nil disables injuries for this match.
	Injuries  *ledger.InjuryBook
	Carryover map[string]ledger.Carryover

	// Strict panics on vitals invariant violations instead of clamping.
	Strict bool
	Logger *log.Logger
	Sinks  []Sink
}

type Match struct {
	cfg   Config
	tune  tuning.Tuning
	ctx   *matchctx.Context
	state State

	a, b   *model.Team
	boards map[string]board.Handle
	// finished holds characters whose board result is already counted in ctx.Score.
	finished map[string]bool

	led  *ledger.Ledger
	conv *convergence.Resolver
	init *initiative.Randomizer
	mom  *momentum.Tracker
	subs *substitution.Engine

	verdict   loss.Verdict
	endReason string
	digest    string
}

// New validates the rosters and performs match setup. The input teams are cloned and never
// mutated. Any failure is a ConfigError.
func New(cfg Config, teamA, teamB *model.Team) (*Match, error) {
	if cfg.Adapter == nil {
		return nil, &ConfigError{Err: ErrNoAdapter}
	}
	tune := cfg.Tuning
	if err := validateTeams(tune.Match, teamA, teamB); err != nil {
		return nil, err
	}
	if cfg.Traits == nil {
		cfg.Traits = traits.Nop{}
	}

	m := &Match{
		cfg:      cfg,
		tune:     tune,
		ctx:      matchctx.New(cfg.MatchID, cfg.Seed, cfg.Logger),
		state:    StateInitializing,
		a:        teamA.Clone(),
		b:        teamB.Clone(),
		boards:   map[string]board.Handle{},
		finished: map[string]bool{},
	}
	m.ctx.Day = cfg.Day
	m.led = ledger.New(tune, cfg.Traits, ledger.Options{Strict: cfg.Strict, Logger: cfg.Logger})
	m.conv = convergence.New(m.led, cfg.Traits, cfg.Roll)
	m.init = initiative.New(tune.Initiative)
	m.mom = momentum.NewTracker(tune)
	m.subs = substitution.New(m.led)

	if err := m.setup(); err != nil {
		return nil, err
	}
	m.state = StateRoundInProgress
	return m, nil
}

func validateTeams(mt tuning.Match, a, b *model.Team) error {
	for _, t := range []*model.Team{a, b} {
		if t == nil {
			return &ConfigError{Err: errors.New("missing team")}
		}
		if len(t.Active) == 0 {
			return &ConfigError{Team: t.Name, Err: ErrNoActiveCharacters}
		}
		if mt.RequireFullRoster && len(t.Active) != mt.ActiveRosterSize {
			return &ConfigError{Team: t.Name, Err: fmt.Errorf("%w: have %d, want %d", ErrRosterSize, len(t.Active), mt.ActiveRosterSize)}
		}
		if err := t.Validate(mt.ActiveRosterSize, mt.RequireFullRoster); err != nil {
			return &ConfigError{Team: t.Name, Err: err}
		}
	}
	if mt.RejectSameTeam && a.ID == b.ID {
		return &ConfigError{Team: a.Name, Err: ErrSameTeam}
	}
	seen := map[string]string{}
	for _, t := range []*model.Team{a, b} {
		for _, c := range t.All() {
			if other, dup := seen[c.ID]; dup && other != t.ID {
				return &ConfigError{Team: t.Name, Err: fmt.Errorf("character %s also rostered by %s", c.ID, other)}
			}
			seen[c.ID] = t.ID
		}
	}
	return nil
}

// setup applies carried state, injuries, home advantage and pre-match bonuses, then opens boards.
func (m *Match) setup() error {
	for _, t := range []*model.Team{m.a, m.b} {
		for i, c := range t.All() {
			c.TeamID = t.ID
			c.Index = i
			c.Injury = nil
			if m.cfg.Injuries != nil {
				m.cfg.Injuries.ApplyTo(c)
			}
			if m.tune.Home.Enabled && t.Home {
				applyHome(c, m.tune.Home.Factor)
			}
			m.led.Prepare(c, m.cfg.Carryover[c.ID])
		}
		m.led.LeaderSynergy(t)
	}
	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.Active {
			m.led.ApplyEffects(c, m.cfg.Traits.ResolveEffects(c, traits.TriggerMatchStart, m.ctx))
		}
	}
	m.mom.Init(m.ctx, m.a, m.b)

	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.Active {
			if err := m.openBoard(c); err != nil {
				return &ConfigError{Team: t.Name, Err: err}
			}
		}
	}
	m.digest = roundDigest(0, m.a, m.b)
	return nil
}

func applyHome(c *model.Character, factor float64) {
	for _, k := range []model.Attr{model.STR, model.SPD, model.FS} {
		v := c.Attrs.Get(k)
		c.Attrs.Set(k, int(math.Round(float64(v)*(1+factor))))
	}
}

func (m *Match) openBoard(c *model.Character) error {
	var opening []string
	if m.tune.Match.RoleOpenings {
		opening = board.OpeningFor(string(c.Role.Base()), m.ctx.Rand())
	}
	h, err := m.cfg.Adapter.NewBoard(opening)
	if err != nil {
		return fmt.Errorf("board for %s: %w", c.ID, err)
	}
	m.boards[c.ID] = h
	return nil
}

func (m *Match) State() State               { return m.state }
func (m *Match) Context() *matchctx.Context { return m.ctx }
func (m *Match) Teams() (a, b *model.Team)  { return m.a, m.b }
func (m *Match) Digest() string             { return m.digest }

// Run plays rounds until termination and assembles the result.
func (m *Match) Run() (*MatchResult, error) {
	if m.state == StateTerminated {
		return nil, ErrTerminated
	}
	for m.state == StateRoundInProgress {
		m.Step()
	}
	return m.result(), nil
}

// Step plays one round. It returns the round's log entry; Terminated is set on the last round.
func (m *Match) Step() RoundLogEntry {
	if m.state != StateRoundInProgress {
		return RoundLogEntry{MatchID: m.cfg.MatchID, Round: m.ctx.Round, Terminated: true, Digest: m.digest}
	}
	ctx := m.ctx
	ctx.Round++
	round := ctx.Round
	convBefore := len(ctx.Convergences)
	subsBefore := len(ctx.Substitutions)
	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.All() {
			c.ConvergencesThisRound = 0
		}
	}

	order := m.init.Roll(ctx, m.a, m.b)
	entry := RoundLogEntry{
		MatchID: m.cfg.MatchID,
		Seed:    m.cfg.Seed,
		Round:   round,
		First:   order.First,
		Order:   order.IDs(),
		Moves:   []MoveEntry{},
	}

	for _, c := range order.Characters {
		if mv, ok := m.advance(c); ok {
			entry.Moves = append(entry.Moves, mv)
		}
	}

	m.conv.Round(ctx, m.a, m.b, m.occupancy())

	for _, c := range order.Characters {
		m.led.DecayStamina(c, round, ctx)
		m.led.EndOfRound(c, round, ctx)
		if c.IsKO && !c.IsDead {
			m.led.AttemptKORecovery(c, ctx)
		}
	}

	m.mom.Update(ctx, m.a, m.b)
	m.verdict = loss.Decide(m.a, m.b, m.tune.Loss)
	switch {
	case m.verdict.Over:
		m.endReason = EndLossCondition
	case !m.anyMoves():
		m.endReason = EndBoardsFinished
	case round >= m.tune.Match.MaxRounds:
		m.endReason = EndRoundCap
	default:
		m.subs.Check(ctx, m.a)
		m.subs.Check(ctx, m.b)
	}

	entry.Convergences = append([]matchctx.ConvergenceRecord{}, ctx.Convergences[convBefore:]...)
	entry.Substitutions = append([]matchctx.Substitution(nil), ctx.Substitutions[subsBefore:]...)
	entry.Momentum = map[string]matchctx.TeamMomentum{
		m.a.ID: ctx.MomentumOf(m.a.ID),
		m.b.ID: ctx.MomentumOf(m.b.ID),
	}
	if m.endReason != "" {
		m.state = StateTerminated
		entry.Terminated = true
		m.finish()
		ctx.Logf("terminated: %s", m.endReason)
	}
	m.digest = roundDigest(round, m.a, m.b)
	entry.Digest = m.digest
	for _, s := range m.cfg.Sinks {
		s.Round(entry)
	}
	return entry
}

// advance plays one ply on c's board. Missing or finished boards are skipped for the round.
func (m *Match) advance(c *model.Character) (MoveEntry, bool) {
	if !c.CanAct() {
		return MoveEntry{}, false
	}
	ad := m.cfg.Adapter
	h, ok := m.boards[c.ID]
	if !ok {
		// Bench substitutes get a board the first round they play.
		if err := m.openBoard(c); err != nil {
			m.ctx.Fault(c.ID, "%v", err)
			return MoveEntry{}, false
		}
		h = m.boards[c.ID]
	}
	if ad.IsGameOver(h) {
		return MoveEntry{}, false
	}
	mv, ok := ad.SelectMove(h, board.Mover{ID: c.ID, Role: string(c.Role), FS: c.Attrs.FS}, m.ctx.Rand())
	if !ok {
		return MoveEntry{}, false
	}
	before := ad.Material(h)
	if err := ad.ApplyMove(h, mv); err != nil {
		m.ctx.Fault(c.ID, "move %s: %v", mv.UCI, err)
		return MoveEntry{}, false
	}
	c.Stats.Add(model.StatMoves, 1)
	switch after := ad.Material(h); {
	case after > before:
		c.Stats.Add(model.StatCaptures, 1)
	case after < before:
		c.Stats.Add(model.StatPiecesLost, 1)
	}
	if ad.IsGameOver(h) && !m.finished[c.ID] {
		m.finished[c.ID] = true
		switch characterOutcome(ad.Result(h), 0) {
		case "win":
			m.ctx.Score[c.TeamID]++
		case "draw":
			m.ctx.Score[c.TeamID] += 0.5
		}
	}
	return MoveEntry{CharacterID: c.ID, UCI: mv.UCI, Capture: mv.Capture}, true
}

func (m *Match) occupancy() convergence.Occupancy {
	occ := convergence.Occupancy{}
	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.Active {
			h, ok := m.boards[c.ID]
			if !ok || !c.CanAct() {
				continue
			}
			occ[c.ID] = convergence.NonPawnSquares(m.cfg.Adapter.Occupied(h))
		}
	}
	return occ
}

// anyMoves reports whether any character able to act still has a board with legal moves.
func (m *Match) anyMoves() bool {
	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.Active {
			if !c.CanAct() {
				continue
			}
			h, ok := m.boards[c.ID]
			if !ok || !m.cfg.Adapter.IsGameOver(h) {
				return true
			}
		}
	}
	return false
}

// finish settles per-character results, morale and injuries once the match has terminated.
func (m *Match) finish() {
	ad := m.cfg.Adapter
	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.Active {
			h, ok := m.boards[c.ID]
			if !ok {
				c.Result = "draw"
				continue
			}
			c.Result = characterOutcome(ad.Result(h), ad.Material(h))
		}
	}
	winner := m.winnerID()
	for _, t := range []*model.Team{m.a, m.b} {
		outcome := ledger.OutcomeDraw
		switch {
		case winner == t.ID:
			outcome = ledger.OutcomeWin
		case winner != "":
			outcome = ledger.OutcomeLoss
		}
		for _, c := range t.Active {
			m.led.ApplyMatchOutcome(c, outcome)
		}
	}
	if m.cfg.Injuries == nil {
		return
	}
	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.All() {
			m.led.RollInjury(c, m.cfg.Injuries, m.ctx)
		}
	}
}

// winnerID decides the match: a loss condition settles it; otherwise board wins, then fewer
// KOs, then remaining HP share, then morale collapse.
func (m *Match) winnerID() string {
	if m.verdict.Over {
		return m.verdict.Winner
	}
	wa, wb := boardWins(m.a), boardWins(m.b)
	switch {
	case wa > wb:
		return m.a.ID
	case wb > wa:
		return m.b.ID
	}
	ka, kb := m.a.KOCount(), m.b.KOCount()
	switch {
	case ka < kb:
		return m.a.ID
	case kb < ka:
		return m.b.ID
	}
	ha, hb := hpShare(m.a), hpShare(m.b)
	switch {
	case ha > hb:
		return m.a.ID
	case hb > ha:
		return m.b.ID
	}
	ca, cb := m.led.MoraleCollapsed(m.a), m.led.MoraleCollapsed(m.b)
	switch {
	case ca && !cb:
		return m.b.ID
	case cb && !ca:
		return m.a.ID
	}
	return ""
}

func boardWins(t *model.Team) int {
	n := 0
	for _, c := range t.Active {
		if c.Result == "win" {
			n++
		}
	}
	return n
}

func boardScore(t *model.Team) float64 {
	var s float64
	for _, c := range t.Active {
		switch c.Result {
		case "win":
			s++
		case "draw":
			s += 0.5
		}
	}
	return s
}

func hpShare(t *model.Team) float64 {
	cur, total := t.HPTotals()
	if total <= 0 {
		return 0
	}
	return cur / total
}

func (m *Match) result() *MatchResult {
	ctx := m.ctx
	r := &MatchResult{
		ProtocolVersion:      protocol.Version,
		MatchID:              m.cfg.MatchID,
		Seed:                 m.cfg.Seed,
		Day:                  m.cfg.Day,
		TeamAID:              m.a.ID,
		TeamBID:              m.b.ID,
		TeamAName:            m.a.Name,
		TeamBName:            m.b.Name,
		TeamAWins:            boardWins(m.a),
		TeamBWins:            boardWins(m.b),
		TeamAScore:           boardScore(m.a),
		TeamBScore:           boardScore(m.b),
		Rounds:               ctx.Round,
		EndReason:            m.endReason,
		ConvergenceCount:     len(ctx.Convergences),
		TraitActivationCount: len(ctx.TraitLog),
		Substitutions:        []SubstitutionResult{},
		Faults:               ctx.Faults,
		FinalDigest:          m.digest,
	}
	if m.verdict.Over {
		reason := m.verdict.ReasonA
		if m.verdict.Loser == m.b.ID || reason == loss.None {
			reason = m.verdict.ReasonB
		}
		r.LossReason = string(reason)
	}
	switch m.winnerID() {
	case m.a.ID:
		r.Winner, r.WinningTeam = WinnerA, m.a.Name
	case m.b.ID:
		r.Winner, r.WinningTeam = WinnerB, m.b.Name
	default:
		r.Winner, r.WinningTeam = WinnerDraw, "None"
	}
	ad := m.cfg.Adapter
	for _, t := range []*model.Team{m.a, m.b} {
		for _, c := range t.Active {
			cr := CharacterResult{
				CharacterID:  c.ID,
				Name:         c.Name,
				Team:         t.Name,
				Role:         string(c.Role),
				Result:       c.Result,
				FinalHP:      c.HP,
				FinalStamina: c.Stamina,
				FinalMorale:  c.Morale,
				FinalLife:    c.Life,
				IsKO:         c.IsKO,
				IsDead:       c.IsDead,
				Stats:        c.Stats,
			}
			if h, ok := m.boards[c.ID]; ok {
				cr.BoardResult = ad.Result(h).String()
				cr.Material = ad.Material(h)
			}
			r.CharacterResults = append(r.CharacterResults, cr)
		}
	}
	for _, s := range ctx.Substitutions {
		r.Substitutions = append(r.Substitutions, SubstitutionResult{
			Team:         s.Team,
			Round:        s.Round,
			ReplacedID:   s.ReplacedID,
			SubstituteID: s.SubstituteID,
		})
	}
	if m.cfg.Injuries != nil {
		for _, t := range []*model.Team{m.a, m.b} {
			for _, c := range t.All() {
				if c.Injury != nil {
					r.Injuries = append(r.Injuries, c.Injury.Clone())
				}
			}
		}
	}
	return r
}

// Play is New followed by Run.
func Play(cfg Config, teamA, teamB *model.Team) (*MatchResult, error) {
	m, err := New(cfg, teamA, teamB)
	if err != nil {
		return nil, err
	}
	return m.Run()
}
