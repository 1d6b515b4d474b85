package convergence

import (
	"math"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

// RollFunc is the individual combat roll of attacker against a representative defender.
type RollFunc func(attacker, defender *model.Character, ctx *matchctx.Context) float64

// CombatRoll returns the default roll: (dN + STR + FS) scaled by OP/5 and morale, plus the role bonus.
func CombatRoll(c tuning.Combat) RollFunc {
	sides := c.RollSides
	if sides <= 0 {
		sides = 100
	}
	return func(att, _ *model.Character, ctx *matchctx.Context) float64 {
		roll := float64(ctx.Rand().Intn(sides) + 1 + att.Attrs.STR + att.Attrs.FS)
		roll = math.Floor(roll * float64(att.Attrs.OP) / float64(model.AttrDefault))
		roll = math.Floor(roll * (1 + (att.Morale-5)*c.MoraleStep))
		if roll < 0 {
			roll = 0
		}
		return roll + float64(c.RoleBonus[roleKey(att.Role)])
	}
}

func roleKey(r model.Role) string {
	if r == model.RoleFLSub {
		return string(model.RoleFL)
	}
	return string(r)
}
