// Package initiative decides per-round processing order so neither team moves first by default.
package initiative

import (
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

// Order is one round's processing order. Characters alternate teams starting with First.
type Order struct {
	First      string
	Characters []*model.Character
}

// IDs lists the character ids in order.
func (o Order) IDs() []string {
	out := make([]string, 0, len(o.Characters))
	for _, c := range o.Characters {
		out = append(out, c.ID)
	}
	return out
}

type Randomizer struct {
	tune tuning.Initiative
}

func New(tune tuning.Initiative) *Randomizer { return &Randomizer{tune: tune} }

// Weight is the team's initiative score: sum of SPD*2+LDR over characters able to act, the
// Field Leader counting FLMultiplier times, scaled by momentum state.
func (r *Randomizer) Weight(t *model.Team, m matchctx.TeamMomentum) float64 {
	var w float64
	for _, c := range t.Active {
		if !c.CanAct() {
			continue
		}
		v := float64(c.Attrs.SPD*2 + c.Attrs.LDR)
		if c.Role.Leads() {
			v *= r.tune.FLMultiplier
		}
		w += v
	}
	switch m.State {
	case model.MomentumBuilding:
		w *= r.tune.BuildingFactor
	case model.MomentumCrash:
		w *= r.tune.CrashFactor
	}
	return w
}

// Roll picks the first team (coin flip, or weighted when enabled), shuffles each team's
// active roster and interleaves them.
func (r *Randomizer) Roll(ctx *matchctx.Context, a, b *model.Team) Order {
	rng := ctx.Rand()
	pA := 0.5
	if r.tune.Weighted {
		wa := r.Weight(a, ctx.MomentumOf(a.ID))
		wb := r.Weight(b, ctx.MomentumOf(b.ID))
		if wa+wb > 0 {
			pA = wa / (wa + wb)
		}
	}
	first, second := a, b
	if rng.Float64() >= pA {
		first, second = b, a
	}
	fs := shuffled(ctx, first.Active)
	ss := shuffled(ctx, second.Active)

	o := Order{First: first.ID, Characters: make([]*model.Character, 0, len(fs)+len(ss))}
	for i := 0; i < len(fs) || i < len(ss); i++ {
		if i < len(fs) {
			o.Characters = append(o.Characters, fs[i])
		}
		if i < len(ss) {
			o.Characters = append(o.Characters, ss[i])
		}
	}
	return o
}

func shuffled(ctx *matchctx.Context, in []*model.Character) []*model.Character {
	out := append([]*model.Character(nil), in...)
	ctx.Rand().Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
