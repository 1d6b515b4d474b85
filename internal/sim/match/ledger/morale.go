package ledger

import "metaleague.ai/internal/sim/match/model"

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// ApplyMatchOutcome moves morale for the team result.
func (l *Ledger) ApplyMatchOutcome(c *model.Character, o Outcome) {
	switch o {
	case OutcomeWin:
		l.AdjustMorale(c, l.tune.Morale.Win)
	case OutcomeLoss:
		l.AdjustMorale(c, l.tune.Morale.Loss)
	}
}

// AllyLeaderDown hits the morale of every teammate of a knocked out Field Leader.
func (l *Ledger) AllyLeaderDown(team *model.Team, leader *model.Character) {
	for _, c := range team.Active {
		if c == nil || c == leader {
			continue
		}
		l.AdjustMorale(c, l.tune.Morale.AllyFLKO)
	}
}

// LeaderSynergy lifts teammates' morale from the Field Leader's LDR before round 1.
func (l *Ledger) LeaderSynergy(team *model.Team) {
	fl := team.FieldLeader()
	if fl == nil {
		return
	}
	bonus := l.tune.Morale.LeaderSynergy * float64(fl.Attrs.LDR-model.AttrDefault)
	if bonus == 0 {
		return
	}
	for _, c := range team.Active {
		if c != fl {
			l.AdjustMorale(c, bonus)
		}
	}
}

// MoraleCollapsed reports whether the team's average morale is below the collapse line.
func (l *Ledger) MoraleCollapsed(team *model.Team) bool {
	if !l.tune.Morale.CollapseEnabled || len(team.Active) == 0 {
		return false
	}
	var sum float64
	for _, c := range team.Active {
		sum += c.Morale
	}
	return sum/float64(len(team.Active)) < l.tune.Morale.CollapseBelow
}
