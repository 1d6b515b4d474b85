package ledger

import (
	"log"
	"math"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/match/traits"
	"metaleague.ai/internal/sim/tuning"
)

// Morale is held within [MoraleMin, MoraleMax].
const (
	MoraleMin = 0
	MoraleMax = 10
)

// DamageModifier rescales damage after reduction. Modifiers run in registration order.
type DamageModifier func(c *model.Character, amount float64, ctx *matchctx.Context) float64

// Options controls invariant handling.
type Options struct {
	// Strict panics on invariant violations instead of clamping and logging.
	Strict bool
	Logger *log.Logger
}

// Ledger is the only writer of HP, stamina, life and morale.
type Ledger struct {
	tune      tuning.Tuning
	resolver  traits.Resolver
	modifiers []DamageModifier
	opts      Options
}

// New builds a ledger with the fatigue modifier registered first.
func New(tune tuning.Tuning, resolver traits.Resolver, opts Options) *Ledger {
	if resolver == nil {
		resolver = traits.Nop{}
	}
	l := &Ledger{tune: tune, resolver: resolver, opts: opts}
	l.Use(l.fatigueModifier)
	return l
}

// Use appends m to the damage modifier pipeline.
func (l *Ledger) Use(m DamageModifier) {
	if m != nil {
		l.modifiers = append(l.modifiers, m)
	}
}

// Tuning returns the constants the ledger was built with.
func (l *Ledger) Tuning() tuning.Tuning { return l.tune }

// Carryover is the banked state a character brings into its next match. Nil fields take defaults.
type Carryover struct {
	Stamina *float64
	Morale  *float64
}

// Caps returns the HP and stamina ceilings a character of role starts a match with.
func (l *Ledger) Caps(role model.Role) (hp, stamina float64) {
	hp, stamina = 100, 100
	if role == model.RoleFL {
		hp *= 1 + l.tune.Substitution.FLHPBonus
		stamina *= 1 + l.tune.Substitution.FLStaminaBonus
	}
	return hp, stamina
}

// Prepare resets a character's per-match state and vitals before round 1.
func (l *Ledger) Prepare(c *model.Character, carry Carryover) {
	c.MaxHP, c.MaxStamina = l.Caps(c.Role)
	c.HP = c.MaxHP
	c.Stamina = c.MaxStamina
	if carry.Stamina != nil {
		c.Stamina = clamp(*carry.Stamina, 0, c.MaxStamina)
	}
	c.Morale = l.tune.Morale.Initial
	if carry.Morale != nil {
		c.Morale = clamp(*carry.Morale, MoraleMin, MoraleMax)
	}
	c.Life = l.tune.Life.Initial
	c.IsKO = c.IsDead
	c.IsActive = !c.IsDead
	c.Stats = model.Stats{}
	c.Result = ""
	c.MomentumState = model.MomentumStable
	c.MomentumValue = 0
	c.ConvergencesThisRound = 0
	c.LastRegenRound = 0
	c.LastDecayRound = 0
	l.check(c)
}

// Boost raises HP and stamina caps by the given fractions and tops the vitals up by the same amount.
func (l *Ledger) Boost(c *model.Character, hpFrac, staminaFrac float64) {
	if c == nil || c.IsDead {
		return
	}
	addHP := 100 * hpFrac
	addSt := 100 * staminaFrac
	c.MaxHP += addHP
	c.MaxStamina += addSt
	c.HP += addHP
	c.Stamina += addSt
	l.check(c)
}

type DamageOutcome struct {
	Actual       float64
	NewHP        float64
	StaminaDrain float64
	LifeLost     float64
	KO           bool
	NewlyKO      bool
	Dead         bool
}

// ApplyDamage reduces amount by reductionPct, runs the modifier pipeline and applies the rest.
// HP absorbs first; overflow drains stamina at the configured rate; a character whose stamina
// is exhausted is knocked out and any remaining overflow drains life.
func (l *Ledger) ApplyDamage(c *model.Character, amount, reductionPct float64, ctx *matchctx.Context) DamageOutcome {
	if c == nil || c.IsDead || amount <= 0 {
		if c != nil {
			return DamageOutcome{NewHP: c.HP, KO: c.IsKO, Dead: c.IsDead}
		}
		return DamageOutcome{}
	}
	reductionPct = clamp(reductionPct, 0, 100)
	dmg := amount * (1 - reductionPct/100)
	for _, m := range l.modifiers {
		dmg = m(c, dmg, ctx)
	}
	if dmg < 0 {
		dmg = 0
	}

	out := DamageOutcome{Actual: dmg}
	wasKO := c.IsKO
	if dmg <= c.HP {
		c.HP -= dmg
	} else {
		overflow := dmg - c.HP
		c.HP = 0
		drain := overflow * l.tune.Convergence.OverflowToStamina
		if drain >= c.Stamina {
			rest := drain - c.Stamina
			out.StaminaDrain = c.Stamina
			c.Stamina = 0
			c.IsKO = true
			if rest > 0 && l.tune.Life.OverflowRate > 0 {
				lost := math.Min(c.Life, rest*l.tune.Life.OverflowRate)
				c.Life -= lost
				out.LifeLost = lost
				if lost > 0 {
					c.Stats.Add(model.StatLifeLost, 1)
				}
			}
		} else {
			c.Stamina -= drain
			out.StaminaDrain = drain
		}
	}
	if c.Life <= 0 {
		c.Life = 0
		c.IsDead = true
		c.IsKO = true
		c.IsActive = false
	}
	if c.IsKO && !wasKO {
		out.NewlyKO = true
		c.Stats.Add(model.StatTimesKOd, 1)
	}
	out.NewHP = c.HP
	out.KO = c.IsKO
	out.Dead = c.IsDead
	l.check(c)
	return out
}

// LowStaminaPenalty is the damage-taken multiplier for the character's fatigue tier.
func (l *Ledger) LowStaminaPenalty(c *model.Character) float64 {
	mult, _ := l.tune.Stamina.FatigueFor(c.Stamina)
	return mult
}

func (l *Ledger) fatigueModifier(c *model.Character, amount float64, _ *matchctx.Context) float64 {
	return amount * l.LowStaminaPenalty(c)
}

// DecayStamina applies the passive per-round drain base*multiplier^round, at most once per round.
func (l *Ledger) DecayStamina(c *model.Character, round int, ctx *matchctx.Context) float64 {
	if c == nil || c.IsDead || !c.IsActive || c.LastDecayRound == round {
		return 0
	}
	c.LastDecayRound = round
	st := l.tune.Stamina
	decay := st.BaseDecay * math.Pow(st.DecayMultiplier, float64(round))
	decay *= math.Max(0.5, 1-st.WilDecayPerPoint*float64(c.Attrs.WIL-model.AttrDefault))
	decay += traits.Sum(l.resolver.ResolveEffects(c, traits.TriggerStaminaDecay, ctx), traits.StaminaCost)
	if decay < 0 {
		decay = 0
	}
	before := c.Stamina
	c.Stamina = clamp(c.Stamina-decay, 0, c.MaxStamina)
	l.check(c)
	return before - c.Stamina
}

// RegenEndOfRound applies flat end-of-round recovery. A second call in the same round is a no-op.
func (l *Ledger) RegenEndOfRound(c *model.Character, round int) bool {
	if c == nil || c.IsDead || c.LastRegenRound == round {
		return false
	}
	c.LastRegenRound = round
	st := l.tune.Stamina
	c.HP = math.Min(c.MaxHP, c.HP+st.RegenHP)
	gain := st.RegenStamina
	if c.IsKO {
		gain = st.RegenStaminaKO
	}
	c.Stamina = math.Min(c.MaxStamina, c.Stamina+gain)
	l.check(c)
	return true
}

// AttemptKORecovery rolls stamina/divisor for a KO'd character above the stamina threshold.
func (l *Ledger) AttemptKORecovery(c *model.Character, ctx *matchctx.Context) bool {
	if c == nil || !c.IsKO || c.IsDead {
		return false
	}
	st := l.tune.Stamina
	if c.Stamina <= st.KORecoveryThreshold {
		return false
	}
	chance := c.Stamina / st.KORecoveryDivisor
	if ctx.Rand().Float64() >= chance {
		return false
	}
	c.IsKO = false
	c.HP = math.Min(c.MaxHP, math.Max(c.HP, st.KORecoveryHPFloor))
	c.Stats.Add(model.StatRecoveries, 1)
	l.check(c)
	return true
}

func (l *Ledger) Heal(c *model.Character, amount float64) float64 {
	if c == nil || c.IsDead || amount <= 0 {
		return 0
	}
	before := c.HP
	c.HP = math.Min(c.MaxHP, c.HP+amount)
	l.check(c)
	return c.HP - before
}

// SpendStamina removes amount (negative amounts restore) within [0, MaxStamina].
func (l *Ledger) SpendStamina(c *model.Character, amount float64) {
	if c == nil || c.IsDead || amount == 0 {
		return
	}
	c.Stamina = clamp(c.Stamina-amount, 0, c.MaxStamina)
	l.check(c)
}

func (l *Ledger) AdjustMorale(c *model.Character, delta float64) {
	if c == nil || c.IsDead || delta == 0 {
		return
	}
	c.Morale = clamp(c.Morale+delta, MoraleMin, MoraleMax)
	l.check(c)
}

// ApplyEffects applies the vitals-mutating effects; reduction and combat bonuses are consumed by callers.
func (l *Ledger) ApplyEffects(c *model.Character, effects []traits.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case traits.Heal:
			l.Heal(c, e.Value)
		case traits.StaminaCost:
			l.SpendStamina(c, e.Value)
		case traits.MoraleChange:
			l.AdjustMorale(c, e.Value)
		}
	}
}

// EndOfRound runs end_of_round trait effects then regen for one character.
func (l *Ledger) EndOfRound(c *model.Character, round int, ctx *matchctx.Context) {
	if c == nil || c.IsDead || !c.IsActive {
		return
	}
	if !c.IsKO {
		l.ApplyEffects(c, l.resolver.ResolveEffects(c, traits.TriggerEndOfRound, ctx))
	}
	l.RegenEndOfRound(c, round)
}

// DayRecovery restores banked stamina between matchdays.
func (l *Ledger) DayRecovery(c *model.Character) {
	if c == nil || c.IsDead {
		return
	}
	c.Stamina = math.Min(c.MaxStamina, c.Stamina+l.tune.Stamina.DayRecovery)
	l.check(c)
}

func (l *Ledger) check(c *model.Character) {
	var bad []InvariantError
	if c.HP < 0 || c.HP > c.MaxHP || math.IsNaN(c.HP) {
		bad = append(bad, InvariantError{c.ID, "hp", c.HP})
	}
	if c.Stamina < 0 || c.Stamina > c.MaxStamina || math.IsNaN(c.Stamina) {
		bad = append(bad, InvariantError{c.ID, "stamina", c.Stamina})
	}
	if c.Morale < MoraleMin || c.Morale > MoraleMax {
		bad = append(bad, InvariantError{c.ID, "morale", c.Morale})
	}
	if c.IsDead && (!c.IsKO || c.IsActive) {
		bad = append(bad, InvariantError{c.ID, "dead_status", 1})
	}
	if len(bad) == 0 {
		return
	}
	if l.opts.Strict {
		panic(bad[0])
	}
	for _, e := range bad {
		if l.opts.Logger != nil {
			l.opts.Logger.Printf("%v (clamped)", e)
		}
	}
	c.HP = clamp(nanZero(c.HP), 0, c.MaxHP)
	c.Stamina = clamp(nanZero(c.Stamina), 0, c.MaxStamina)
	c.Morale = clamp(c.Morale, MoraleMin, MoraleMax)
	if c.IsDead {
		c.IsKO = true
		c.IsActive = false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nanZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
