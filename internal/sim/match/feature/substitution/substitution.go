// Package substitution promotes a replacement when a team's Field Leader is knocked out.
package substitution

import (
	"sort"

	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

// LeadershipTrait is granted to a substitute for the rest of the match.
const LeadershipTrait = "leadership_boost"

// Engine fires at most once per team per match.
type Engine struct {
	tune   tuning.Tuning
	ledger *ledger.Ledger
	done   map[string]bool
}

func New(l *ledger.Ledger) *Engine {
	return &Engine{tune: l.Tuning(), ledger: l, done: map[string]bool{}}
}

// Eligible lists characters that may take the FL slot, best first: not KO'd, not dead, not in
// the leader line, highest LDR, ties by roster index.
func Eligible(t *model.Team) []*model.Character {
	var out []*model.Character
	for _, c := range t.All() {
		if c == nil || c.IsKO || c.IsDead || c.Role.Base() == model.RoleFL {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Attrs.LDR != out[j].Attrs.LDR {
			return out[i].Attrs.LDR > out[j].Attrs.LDR
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// Check runs after damage each round. When the team's Field Leader is down it lowers teammates'
// morale once and promotes the best eligible character. Returns nil when nothing changed.
func (e *Engine) Check(ctx *matchctx.Context, t *model.Team) *matchctx.Substitution {
	if e.done[t.ID] {
		return nil
	}
	slot := -1
	for i, c := range t.Active {
		if c != nil && c.Role == model.RoleFL {
			slot = i
			break
		}
	}
	if slot < 0 || !t.Active[slot].IsKO {
		return nil
	}
	e.done[t.ID] = true
	fl := t.Active[slot]
	e.ledger.AllyLeaderDown(t, fl)

	cands := Eligible(t)
	if len(cands) == 0 {
		ctx.Logf("team %s: field leader %s down, no eligible substitute", t.ID, fl.ID)
		return nil
	}
	sub := cands[0]
	fl.Role = model.RoleFLKO
	if j := benchIndex(t, sub); j >= 0 {
		// A bench substitute takes the leader's active slot; the leader drops to the bench.
		t.Active[slot], t.Bench[j] = sub, fl
		sub.IsActive = !sub.IsDead
	}
	sub.Role = model.RoleFLSub
	share := e.tune.Substitution.BonusShare
	e.ledger.Boost(sub, e.tune.Substitution.FLHPBonus*share, e.tune.Substitution.FLStaminaBonus*share)
	if !sub.HasTrait(LeadershipTrait) {
		sub.Traits = append(sub.Traits, LeadershipTrait)
	}

	rec := matchctx.Substitution{
		Round:        ctx.Round,
		TeamID:       t.ID,
		Team:         t.Name,
		ReplacedID:   fl.ID,
		SubstituteID: sub.ID,
	}
	ctx.Substitutions = append(ctx.Substitutions, rec)
	ctx.Logf("team %s: %s replaces field leader %s", t.ID, sub.ID, fl.ID)
	return &rec
}

func benchIndex(t *model.Team, c *model.Character) int {
	for j, b := range t.Bench {
		if b == c {
			return j
		}
	}
	return -1
}
