// Package momentum tracks each team's crash/stable/building state across rounds.
package momentum

import (
	"math"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

// Strength blends the share of characters still able to act with the team's HP share, in [0,1].
func Strength(t *model.Team) float64 {
	if t == nil || len(t.Active) == 0 {
		return 0
	}
	active := float64(t.ActiveCount()) / float64(len(t.Active))
	cur, total := t.HPTotals()
	hp := 0.0
	if total > 0 {
		hp = cur / total
	}
	return 0.5*active + 0.5*hp
}

// Shift maps a strength delta to a momentum change: a fixed step for large and medium
// deltas, proportional below that.
func Shift(delta float64, m tuning.Momentum) float64 {
	mag := math.Abs(delta)
	var s float64
	switch {
	case mag >= m.LargeDelta:
		s = m.LargeShift
	case mag >= m.SmallDelta:
		s = m.SmallShift
	default:
		s = mag * m.ProportionalFactor
	}
	if delta < 0 {
		return -s
	}
	return s
}

func StateFor(v float64, m tuning.Momentum) model.MomentumState {
	switch {
	case v <= m.Crash:
		return model.MomentumCrash
	case v >= m.Building:
		return model.MomentumBuilding
	}
	return model.MomentumStable
}

type Tracker struct {
	tune tuning.Tuning
}

func NewTracker(tune tuning.Tuning) *Tracker { return &Tracker{tune: tune} }

// Init seeds both teams at zero momentum.
func (tr *Tracker) Init(ctx *matchctx.Context, a, b *model.Team) {
	for _, t := range []*model.Team{a, b} {
		ctx.Momentum[t.ID] = &matchctx.TeamMomentum{State: model.MomentumStable}
		tr.publish(ctx, t)
	}
}

// Update shifts both teams by the current strength delta and refreshes derived bonuses.
func (tr *Tracker) Update(ctx *matchctx.Context, a, b *model.Team) {
	m := tr.tune.Momentum
	s := Shift(Strength(a)-Strength(b), m)
	tr.apply(ctx, a, s)
	tr.apply(ctx, b, -s)
	tr.refresh(ctx, a, b)
	tr.refresh(ctx, b, a)
	tr.publish(ctx, a)
	tr.publish(ctx, b)
}

func (tr *Tracker) apply(ctx *matchctx.Context, t *model.Team, shift float64) {
	m := tr.tune.Momentum
	tm := ctx.Momentum[t.ID]
	if tm == nil {
		tm = &matchctx.TeamMomentum{}
		ctx.Momentum[t.ID] = tm
	}
	tm.Value = math.Max(m.Min, math.Min(m.Max, tm.Value+shift))
	tm.State = StateFor(tm.Value, m)
}

// refresh derives comeback and the bonuses it grants. A comeback is a building team that
// trails on the board score.
func (tr *Tracker) refresh(ctx *matchctx.Context, t, opp *model.Team) {
	m := tr.tune.Momentum
	tm := ctx.Momentum[t.ID]
	tm.Comeback = tm.State == model.MomentumBuilding && ctx.Score[t.ID] < ctx.Score[opp.ID]
	tm.TraitBonus, tm.ReductionBonus, tm.DamageBonus = 0, 0, 0
	if tm.State == model.MomentumBuilding {
		tm.TraitBonus += m.BuildingTraitBonus
		tm.DamageBonus = tr.tune.Combat.BuildingDamageBonus
	}
	if tm.Comeback {
		tm.TraitBonus += m.ComebackTraitBonus
		tm.ReductionBonus = m.ComebackReduction
	}
}

func (tr *Tracker) publish(ctx *matchctx.Context, t *model.Team) {
	tm := ctx.Momentum[t.ID]
	for _, c := range t.Active {
		c.MomentumState = tm.State
		c.MomentumValue = tm.Value
	}
}
