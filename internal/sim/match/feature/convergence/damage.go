package convergence

import (
	"math"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

// BaseDamage is scale*ln(1+diff/divisor), floored, never negative.
func BaseDamage(diff, scale, divisor float64) int {
	if diff <= 0 || divisor <= 0 {
		return 0
	}
	d := math.Floor(scale * math.Log1p(diff/divisor))
	if d < 0 {
		return 0
	}
	return int(d)
}

// PerLoserDamage splits base damage across the losing side. Outnumbered losers take more;
// every loser takes at least 1. damageCap (when set) bounds the result.
func PerLoserDamage(base, winners, losers int, outnumberBonus, damageBonus float64, damageCap *int) int {
	if losers <= 0 {
		return 0
	}
	f := float64(base) / float64(losers)
	if winners > losers {
		f *= 1 + outnumberBonus*float64(winners-losers)
	}
	f *= 1 + damageBonus
	d := int(math.Floor(f))
	if d < 1 {
		d = 1
	}
	if damageCap != nil && d > *damageCap {
		d = *damageCap
	}
	return d
}

// ReductionPct is the damage reduction a loser gets before trait effects are added,
// plus traitPct, capped at the configured maximum.
func ReductionPct(tune tuning.Tuning, c *model.Character, traitPct float64, ctx *matchctx.Context) float64 {
	r := tune.Reduction
	pct := float64(c.Attrs.DUR)*r.DurPerPoint + float64(c.Attrs.RES)*r.ResPerPoint + traitPct
	if ctx != nil {
		m := ctx.MomentumOf(c.TeamID)
		if m.State == model.MomentumCrash {
			pct += r.CrashBonus
		}
		pct += m.ReductionBonus
	}
	switch c.Role {
	case model.RoleFL:
		pct += r.FLBonus
	case model.RoleFLSub:
		pct += r.FLSubBonus
	}
	if pct < 0 {
		pct = 0
	}
	if ceiling := tune.Convergence.MaxReductionPct; pct > ceiling {
		pct = ceiling
	}
	return pct
}
