// Package loss evaluates team-level loss conditions after each round.
package loss

import (
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

type Reason string

const (
	None           Reason = ""
	NoCharacters   Reason = "no_characters"
	KOThreshold    Reason = "ko_threshold"
	FieldLeaderKO  Reason = "field_leader_ko"
	TeamHP         Reason = "team_hp"
	ActiveFraction Reason = "active_fraction"
)

// Evaluate returns the first loss condition the team meets, in priority order.
func Evaluate(t *model.Team, l tuning.Loss) Reason {
	remaining := 0
	for _, c := range t.Active {
		if c != nil && c.IsActive && !c.IsDead {
			remaining++
		}
	}
	if remaining == 0 {
		return NoCharacters
	}
	ko := t.KOCount()
	if l.KOThreshold > 0 && ko >= l.KOThreshold {
		return KOThreshold
	}
	if leaderDown(t) && ko >= l.FLPlusThreshold {
		return FieldLeaderKO
	}
	if cur, total := t.HPTotals(); total > 0 && cur/total*100 < l.TeamHPPct {
		return TeamHP
	}
	if float64(t.ActiveCount())/float64(len(t.Active))*100 < l.ActivePct {
		return ActiveFraction
	}
	return None
}

// leaderDown reports a knocked out character in the Field Leader line (FL, FL-KO or FL-SUB).
func leaderDown(t *model.Team) bool {
	for _, c := range t.Active {
		if c != nil && c.Role.Base() == model.RoleFL && c.IsKO {
			return true
		}
	}
	return false
}

// Verdict is the combined outcome of one evaluation. Winner is a team id, or "" for a draw.
type Verdict struct {
	Over    bool
	Draw    bool
	Winner  string
	Loser   string
	ReasonA Reason
	ReasonB Reason
}

// Decide evaluates both teams. When both lose in the same round the side with more remaining
// HP wins; equal HP is a draw.
func Decide(a, b *model.Team, l tuning.Loss) Verdict {
	v := Verdict{ReasonA: Evaluate(a, l), ReasonB: Evaluate(b, l)}
	switch {
	case v.ReasonA == None && v.ReasonB == None:
		return v
	case v.ReasonA != None && v.ReasonB == None:
		v.Winner, v.Loser = b.ID, a.ID
	case v.ReasonA == None && v.ReasonB != None:
		v.Winner, v.Loser = a.ID, b.ID
	default:
		hpA, _ := a.HPTotals()
		hpB, _ := b.HPTotals()
		switch {
		case hpA > hpB:
			v.Winner, v.Loser = a.ID, b.ID
		case hpB > hpA:
			v.Winner, v.Loser = b.ID, a.ID
		default:
			v.Draw = true
		}
	}
	v.Over = true
	return v
}
