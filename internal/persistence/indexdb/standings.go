package indexdb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/match/model"
)

// Points awarded per match result in the league table.
const (
	PointsWin  = 3
	PointsDraw = 1
)

type Standing struct {
	Team   string `json:"team"`
	Played int    `json:"played"`
	Won    int    `json:"won"`
	Drawn  int    `json:"drawn"`
	Lost   int    `json:"lost"`
	Points int    `json:"points"`
	// BoardDiff is boards won minus boards lost across every match.
	BoardDiff int `json:"board_diff"`
}

// Standings builds the league table from indexed matches, ordered by points, then wins, then board
// difference, then team id.
func (s *SQLiteIndex) Standings(ctx context.Context) ([]Standing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM matches ORDER BY day, match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := map[string]*Standing{}
	row := func(id string) *Standing {
		st, ok := table[id]
		if !ok {
			st = &Standing{Team: id}
			table[id] = st
		}
		return st
	}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r match.MatchResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		a, b := row(r.TeamAID), row(r.TeamBID)
		a.Played++
		b.Played++
		a.BoardDiff += r.TeamAWins - r.TeamBWins
		b.BoardDiff += r.TeamBWins - r.TeamAWins
		switch r.Winner {
		case match.WinnerA:
			a.Won++
			b.Lost++
		case match.WinnerB:
			b.Won++
			a.Lost++
		default:
			a.Drawn++
			b.Drawn++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Standing, 0, len(table))
	for _, st := range table {
		st.Points = st.Won*PointsWin + st.Drawn*PointsDraw
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if x.Points != y.Points {
			return x.Points > y.Points
		}
		if x.Won != y.Won {
			return x.Won > y.Won
		}
		if x.BoardDiff != y.BoardDiff {
			return x.BoardDiff > y.BoardDiff
		}
		return x.Team < y.Team
	})
	return out, nil
}

// MatchRow is the indexed summary of one match.
type MatchRow struct {
	MatchID    string
	Day        int
	TeamA      string
	TeamB      string
	Winner     string
	Rounds     int
	EndReason  string
	RecordedAt time.Time
}

// Matches lists indexed matches for day, or every day when day <= 0.
func (s *SQLiteIndex) Matches(ctx context.Context, day, limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT match_id,day,team_a,team_b,winner,rounds,end_reason,recorded_at FROM matches`
	args := []any{}
	if day > 0 {
		q += ` WHERE day=?`
		args = append(args, day)
	}
	q += ` ORDER BY day, match_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MatchRow
	for rows.Next() {
		var (
			m  MatchRow
			at string
		)
		if err := rows.Scan(&m.MatchID, &m.Day, &m.TeamA, &m.TeamB, &m.Winner, &m.Rounds, &m.EndReason, &at); err != nil {
			return nil, err
		}
		m.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Injuries lists every stored injury by character id.
func (s *SQLiteIndex) Injuries(ctx context.Context) ([]model.InjuryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT character_id FROM injuries ORDER BY character_id`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.InjuryRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.LoadInjury(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
