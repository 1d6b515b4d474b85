package main

import (
	"fmt"
	"strings"
	"testing"

	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/roster"
	"metaleague.ai/internal/sim/schedule"
	"metaleague.ai/internal/sim/tuning"
)

func newTeam(t *testing.T, id string) *model.Team {
	t.Helper()
	roles := []model.Role{
		model.RoleFL, model.RoleVG, model.RoleEN, model.RoleRG,
		model.RoleGO, model.RolePO, model.RoleSV, model.RoleVG,
	}
	team := &model.Team{ID: id, Name: "Team " + id}
	for i, r := range roles {
		c, err := model.NewCharacter(fmt.Sprintf("%s-%d", id, i), "", id, r, model.DefaultAttributes(), nil)
		if err != nil {
			t.Fatalf("character: %v", err)
		}
		team.Active = append(team.Active, c)
	}
	return team
}

func recorded(t *testing.T) (schedule.Manifest, match.Config, []match.RoundLogEntry) {
	t.Helper()
	tune := tuning.Defaults()
	tune.Match.MaxRounds = 8
	stamina := 70.0
	m := schedule.Manifest{
		MatchID:  "replay-test",
		Day:      3,
		Seed:     99,
		HomeTeam: "A",
		TeamA:    roster.SpecOf(newTeam(t, "A")),
		TeamB:    roster.SpecOf(newTeam(t, "B")),
		Carry:    map[string]schedule.Carry{"A-0": {Stamina: &stamina}},
	}
	base := match.Config{Tuning: tune, Adapter: board.NewChessAdapter(board.DefaultSelector())}

	var rounds []match.RoundLogEntry
	cfg := base
	book, carry := m.Ledgers()
	cfg.MatchID, cfg.Seed, cfg.Day = m.MatchID, m.Seed, m.Day
	cfg.Injuries, cfg.Carryover = book, carry
	cfg.Sinks = []match.Sink{match.SinkFunc(func(e match.RoundLogEntry) { rounds = append(rounds, e) })}
	a, b, err := m.Teams()
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	if _, err := match.Play(cfg, a, b); err != nil {
		t.Fatalf("play: %v", err)
	}
	base.Adapter = board.NewChessAdapter(board.DefaultSelector())
	return m, base, rounds
}

func TestReplayMatch_ReproducesEveryDigest(t *testing.T) {
	m, base, rounds := recorded(t)
	checked, err := replayMatch(m, base, rounds, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != len(rounds) {
		t.Fatalf("expected %d rounds checked, got %d", len(rounds), checked)
	}
}

func TestReplayMatch_StopsAtRound(t *testing.T) {
	m, base, rounds := recorded(t)
	checked, err := replayMatch(m, base, rounds, 2)
	if err != nil || checked != 2 {
		t.Fatalf("expected 2 rounds checked, got %d err=%v", checked, err)
	}
}

func TestReplayMatch_DetectsTampering(t *testing.T) {
	m, base, rounds := recorded(t)
	rounds[1].Digest = strings.Repeat("0", 64)
	checked, err := replayMatch(m, base, rounds, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at round 2") {
		t.Fatalf("expected digest mismatch at round 2, got %v", err)
	}
	if checked != 1 {
		t.Fatalf("expected 1 round verified before the mismatch, got %d", checked)
	}
}
