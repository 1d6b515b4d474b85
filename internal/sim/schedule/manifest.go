package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/roster"
)

// ManifestFile is the manifest's file name inside a match directory.
const ManifestFile = "match.json"

// Manifest is everything needed to re-simulate one match: seed, rosters as they entered the match
// and the cross-match state they carried in.
type Manifest struct {
	MatchID  string               `json:"match_id"`
	Day      int                  `json:"day"`
	Index    int                  `json:"index"`
	Seed     int64                `json:"seed"`
	HomeTeam string               `json:"home_team,omitempty"`
	TeamA    roster.TeamSpec      `json:"team_a"`
	TeamB    roster.TeamSpec      `json:"team_b"`
	Injuries []model.InjuryRecord `json:"injuries,omitempty"`
	Carry    map[string]Carry     `json:"carryover,omitempty"`
}

type Carry struct {
	Stamina *float64 `json:"stamina,omitempty"`
	Morale  *float64 `json:"morale,omitempty"`
}

// Teams rebuilds both teams with the home flag applied.
func (m Manifest) Teams() (*model.Team, *model.Team, error) {
	a, err := m.TeamA.Build()
	if err != nil {
		return nil, nil, err
	}
	b, err := m.TeamB.Build()
	if err != nil {
		return nil, nil, err
	}
	a.Home = m.HomeTeam == a.ID
	b.Home = m.HomeTeam == b.ID
	return a, b, nil
}

// Ledgers rebuilds the injury book and carryover the match started from.
func (m Manifest) Ledgers() (*ledger.InjuryBook, map[string]ledger.Carryover) {
	book := ledger.NewInjuryBook()
	for _, rec := range m.Injuries {
		book.Put(rec)
	}
	carry := make(map[string]ledger.Carryover, len(m.Carry))
	for id, c := range m.Carry {
		carry[id] = ledger.Carryover{Stamina: c.Stamina, Morale: c.Morale}
	}
	return book, carry
}

func WriteManifest(path string, m Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}
