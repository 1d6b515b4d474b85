// Package convergence detects and resolves cross-board engagements between opposing characters.
package convergence

import (
	"fmt"
	"math"
	"sort"

	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/match/traits"
	"metaleague.ai/internal/sim/tuning"
)

// Occupancy maps a character id to the squares its board holds non-pawn pieces on.
type Occupancy map[string][]int

// NonPawnSquares keeps the squares of every non-pawn piece, either colour.
func NonPawnSquares(ps []board.Placement) []int {
	out := make([]int, 0, len(ps))
	for _, p := range ps {
		if p.Kind == board.NoPiece || p.IsPawn() {
			continue
		}
		out = append(out, p.Square)
	}
	return out
}

// Candidate is one contested square with at least one eligible character per side.
type Candidate struct {
	Square int
	A, B   []*model.Character

	base     map[string]float64
	priority float64
}

// Detect lists contested squares in ascending square order. Characters that cannot act or
// have reached maxPerChar convergences this round are left out.
func Detect(a, b []*model.Character, occ Occupancy, maxPerChar int) []Candidate {
	holds := func(side []*model.Character) [64][]*model.Character {
		var by [64][]*model.Character
		for _, c := range side {
			if !eligible(c, maxPerChar) {
				continue
			}
			seen := [64]bool{}
			for _, sq := range occ[c.ID] {
				if sq < 0 || sq > 63 || seen[sq] {
					continue
				}
				seen[sq] = true
				by[sq] = append(by[sq], c)
			}
		}
		return by
	}
	byA, byB := holds(a), holds(b)
	var out []Candidate
	for sq := 0; sq < 64; sq++ {
		if len(byA[sq]) == 0 || len(byB[sq]) == 0 {
			continue
		}
		out = append(out, Candidate{Square: sq, A: byA[sq], B: byB[sq]})
	}
	return out
}

func eligible(c *model.Character, maxPerChar int) bool {
	return c.CanAct() && (maxPerChar <= 0 || c.ConvergencesThisRound < maxPerChar)
}

type Resolver struct {
	tune   tuning.Tuning
	ledger *ledger.Ledger
	traits traits.Resolver
	roll   RollFunc
}

// New builds a resolver. A nil roll uses CombatRoll; a nil trait resolver resolves nothing.
func New(l *ledger.Ledger, tr traits.Resolver, roll RollFunc) *Resolver {
	tune := l.Tuning()
	if tr == nil {
		tr = traits.Nop{}
	}
	if roll == nil {
		roll = CombatRoll(tune.Combat)
	}
	return &Resolver{tune: tune, ledger: l, traits: tr, roll: roll}
}

// Round detects and resolves every convergence between teamA and teamB for the current round.
// Candidates are ranked by roll gap, then square, then lowest roster index, and at most
// max_per_round of them are resolved.
func (r *Resolver) Round(ctx *matchctx.Context, teamA, teamB *model.Team, occ Occupancy) []matchctx.ConvergenceRecord {
	cv := r.tune.Convergence
	cands := Detect(teamA.Active, teamB.Active, occ, cv.MaxPerCharacter)
	for i := range cands {
		r.prime(ctx, &cands[i])
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].priority != cands[j].priority {
			return cands[i].priority > cands[j].priority
		}
		if cands[i].Square != cands[j].Square {
			return cands[i].Square < cands[j].Square
		}
		return minIndex(cands[i]) < minIndex(cands[j])
	})
	if cv.MaxPerRound > 0 && len(cands) > cv.MaxPerRound {
		cands = cands[:cv.MaxPerRound]
	}

	var out []matchctx.ConvergenceRecord
	for _, cand := range cands {
		rec, err := r.resolve(ctx, teamA, teamB, cand)
		if err != nil {
			ctx.Fault(board.SquareName(cand.Square), "convergence: %v", err)
			continue
		}
		if rec == nil {
			continue
		}
		ctx.Convergences = append(ctx.Convergences, *rec)
		out = append(out, *rec)
	}
	return out
}

// prime draws the base roll of every participant against the first opponent on the square.
func (r *Resolver) prime(ctx *matchctx.Context, c *Candidate) {
	c.base = make(map[string]float64, len(c.A)+len(c.B))
	var sumA, sumB float64
	for _, p := range c.A {
		v := r.roll(p, c.B[0], ctx)
		c.base[p.ID] = v
		sumA += v
	}
	for _, p := range c.B {
		v := r.roll(p, c.A[0], ctx)
		c.base[p.ID] = v
		sumB += v
	}
	c.priority = math.Abs(sumA - sumB)
}

func minIndex(c Candidate) int {
	m := math.MaxInt
	for _, p := range c.A {
		m = min(m, p.Index)
	}
	for _, p := range c.B {
		m = min(m, p.Index)
	}
	return m
}

type side struct {
	team  *model.Team
	chars []*model.Character
	parts []matchctx.Participant
	total float64
}

// resolve settles one candidate. A nil record means every participant on one side was
// used up by earlier convergences this round.
func (r *Resolver) resolve(ctx *matchctx.Context, teamA, teamB *model.Team, cand Candidate) (*matchctx.ConvergenceRecord, error) {
	cv := r.tune.Convergence
	sa := side{team: teamA}
	sb := side{team: teamB}
	for _, p := range cand.A {
		if eligible(p, cv.MaxPerCharacter) {
			sa.chars = append(sa.chars, p)
		}
	}
	for _, p := range cand.B {
		if eligible(p, cv.MaxPerCharacter) {
			sb.chars = append(sb.chars, p)
		}
	}
	if len(sa.chars) == 0 || len(sb.chars) == 0 {
		return nil, nil
	}
	for _, s := range []*side{&sa, &sb} {
		if err := r.aggregate(ctx, s, cand.base); err != nil {
			return nil, err
		}
	}

	rec := &matchctx.ConvergenceRecord{
		Round:  ctx.Round,
		Square: board.SquareName(cand.Square),
		A:      sa.parts,
		B:      sb.parts,
		RollA:  sa.total,
		RollB:  sb.total,
	}
	win, lose := &sa, &sb
	rec.Winner = "A"
	switch {
	case sb.total > sa.total, sb.total == sa.total && cv.TieBreak == "B":
		win, lose = &sb, &sa
		rec.Winner = "B"
	}

	diff := win.total - lose.total
	rec.BaseDamage = BaseDamage(diff, cv.DamageScale, cv.DamageDivisor)
	bonus := ctx.MomentumOf(win.team.ID).DamageBonus
	rec.PerLoser = PerLoserDamage(rec.BaseDamage, len(win.chars), len(lose.chars), cv.OutnumberBonus, bonus, cv.DamageCap)
	rec.Critical = cv.CriticalMargin > 0 && diff >= float64(cv.CriticalMargin)

	top := topRoller(win)
	for _, c := range win.chars {
		c.Stats.Add(model.StatConvergenceWins, 1)
		c.Stats.Add(model.DivisionKey(model.StatConvergenceWins, c.Division), 1)
		if c != top {
			c.Stats.Add(model.StatAssists, 1)
		}
	}
	if rec.Critical {
		top.Stats.Add(model.StatUltimate, 1)
	}

	for _, c := range lose.chars {
		c.Stats.Add(model.StatConvergenceLoss, 1)
		effects := r.traits.ResolveEffects(c, traits.TriggerDamageTaken, ctx)
		red := ReductionPct(r.tune, c, traits.Sum(effects, traits.DamageReduction), ctx)
		out := r.ledger.ApplyDamage(c, float64(rec.PerLoser), red, ctx)
		r.ledger.ApplyEffects(c, effects)

		dealt := int(math.Round(out.Actual))
		c.Stats.Add(model.StatDamageSustained, dealt)
		c.Stats.Add(model.DivisionKey(model.StatDamageSustained, c.Division), dealt)
		top.Stats.Add(model.StatDamageDealt, dealt)
		top.Stats.Add(model.DivisionKey(model.StatDamageDealt, top.Division), dealt)
		if out.NewlyKO {
			top.Stats.Add(model.StatTakedowns, 1)
		}
		rec.Damage = append(rec.Damage, matchctx.DamageEntry{
			CharacterID:  c.ID,
			Raw:          rec.PerLoser,
			ReductionPct: red,
			Actual:       out.Actual,
			KO:           out.KO,
		})
	}

	ctx.Logf("convergence %s: A %.0f vs B %.0f -> %s, %d per loser", rec.Square, rec.RollA, rec.RollB, rec.Winner, rec.PerLoser)
	return rec, nil
}

// aggregate adds convergence trait bonuses and synergy to each participant's base roll.
func (r *Resolver) aggregate(ctx *matchctx.Context, s *side, base map[string]float64) error {
	synergy := 1 + r.tune.Convergence.SynergyPerExtra*float64(len(s.chars)-1)
	for _, c := range s.chars {
		v, ok := base[c.ID]
		if !ok {
			return fmt.Errorf("no base roll for %s", c.ID)
		}
		effects := r.traits.ResolveEffects(c, traits.TriggerConvergence, ctx)
		bonus := traits.Sum(effects, traits.CombatBonus)
		r.ledger.ApplyEffects(c, effects)
		c.ConvergencesThisRound++
		roll := (v + bonus) * synergy
		s.parts = append(s.parts, matchctx.Participant{
			CharacterID: c.ID,
			TeamID:      s.team.ID,
			Roll:        roll,
			TraitBonus:  bonus,
		})
		s.total += roll
	}
	return nil
}

func topRoller(s *side) *model.Character {
	best := 0
	for i := range s.parts {
		if s.parts[i].Roll > s.parts[best].Roll {
			best = i
		}
	}
	return s.chars[best]
}
