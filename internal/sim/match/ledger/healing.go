package ledger

import (
	"fmt"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
)

type HealingOutcome struct {
	Success          bool
	Chance           float64
	StaminaCost      float64
	MatchesRemaining int
}

// AttemptHealing spends stamina on a recovery roll that shortens an injury by one match.
func (l *Ledger) AttemptHealing(c *model.Character, book *InjuryBook, ctx *matchctx.Context) (HealingOutcome, error) {
	rec, ok := book.Get(c.ID)
	if !ok {
		return HealingOutcome{}, fmt.Errorf("heal %s: %w", c.ID, ErrNotInjured)
	}
	h := l.tune.Healing
	sev := string(rec.Severity)
	cost := h.CostBase * h.CostFactor[sev]
	if c.Stamina < cost {
		return HealingOutcome{StaminaCost: cost, MatchesRemaining: rec.MatchesRemaining},
			fmt.Errorf("heal %s: need %.0f stamina, have %.0f: %w", c.ID, cost, c.Stamina, ErrInsufficientStamina)
	}
	chance := h.Chance[sev] + h.ResModifier*float64(c.Attrs.RES-model.AttrDefault)/float64(model.AttrDefault)
	chance = clamp(chance, h.MinChance, h.MaxChance)

	l.SpendStamina(c, cost)
	out := HealingOutcome{Chance: chance, StaminaCost: cost, MatchesRemaining: rec.MatchesRemaining}
	if ctx.Rand().Float64() < chance {
		out.Success = true
		out.MatchesRemaining = book.reduceOne(c)
		c.Stats.Add(model.StatHealing, 1)
	}
	return out, nil
}
