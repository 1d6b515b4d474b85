package traits

import (
	"metaleague.ai/internal/sim/catalogs"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
)

type Trigger string

const (
	TriggerMatchStart   Trigger = "match_start"
	TriggerConvergence  Trigger = "convergence"
	TriggerDamageTaken  Trigger = "damage_taken"
	TriggerStaminaDecay Trigger = "stamina_decay"
	TriggerEndOfRound   Trigger = "end_of_round"
)

type EffectKind string

const (
	DamageReduction EffectKind = "damage_reduction"
	CombatBonus     EffectKind = "combat_bonus"
	Heal            EffectKind = "heal"
	StaminaCost     EffectKind = "stamina_cost"
	MoraleChange    EffectKind = "morale_change"
)

type Effect struct {
	Kind    EffectKind
	Value   float64
	TraitID string
}

// Resolver turns a character's traits into effects for one trigger.
// Implementations keep no state of their own; cooldowns and logs live in the match context.
type Resolver interface {
	ResolveEffects(c *model.Character, trigger Trigger, ctx *matchctx.Context) []Effect
}

type ResolverFunc func(c *model.Character, trigger Trigger, ctx *matchctx.Context) []Effect

func (f ResolverFunc) ResolveEffects(c *model.Character, trigger Trigger, ctx *matchctx.Context) []Effect {
	return f(c, trigger, ctx)
}

// Nop resolves no effects.
type Nop struct{}

func (Nop) ResolveEffects(*model.Character, Trigger, *matchctx.Context) []Effect { return nil }

func Sum(effects []Effect, kind EffectKind) float64 {
	var total float64
	for _, e := range effects {
		if e.Kind == kind {
			total += e.Value
		}
	}
	return total
}

type CatalogResolver struct {
	cat catalogs.TraitCatalog
}

func NewCatalogResolver(cat catalogs.TraitCatalog) *CatalogResolver {
	return &CatalogResolver{cat: cat}
}

func (r *CatalogResolver) ResolveEffects(c *model.Character, trigger Trigger, ctx *matchctx.Context) []Effect {
	if c == nil || c.IsDead {
		return nil
	}
	var out []Effect
	for _, id := range c.Traits {
		def, ok := r.cat.Get(id)
		if !ok || !def.HasTrigger(string(trigger)) {
			continue
		}
		if ctx != nil && ctx.OnCooldown(c.ID, id) {
			continue
		}
		if def.Chance > 0 {
			if ctx == nil {
				continue
			}
			chance := def.Chance + ctx.MomentumOf(c.TeamID).TraitBonus
			if ctx.Rand().Float64()*100 >= chance {
				continue
			}
		}
		out = append(out, Effect{Kind: EffectKind(def.Effect), Value: def.Value, TraitID: id})
		if def.StaminaCost > 0 {
			out = append(out, Effect{Kind: StaminaCost, Value: def.StaminaCost, TraitID: id})
		}
		if c.Stats != nil {
			c.Stats.Add(model.StatTraitActivation, 1)
		}
		if ctx != nil {
			ctx.StartCooldown(c.ID, id, def.Cooldown)
			ctx.RecordTrait(matchctx.TraitActivation{
				CharacterID: c.ID,
				TraitID:     id,
				Trigger:     string(trigger),
				Effect:      def.Effect,
				Value:       def.Value,
			})
		}
	}
	return out
}
