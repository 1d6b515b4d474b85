package match

import (
	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
)

const (
	WinnerA    = "Team A"
	WinnerB    = "Team B"
	WinnerDraw = "Draw"
)

// End reasons.
const (
	EndLossCondition  = "loss_condition"
	EndBoardsFinished = "boards_finished"
	EndRoundCap       = "round_cap"
)

type CharacterResult struct {
	CharacterID  string      `json:"character_id"`
	Name         string      `json:"name"`
	Team         string      `json:"team"`
	Role         string      `json:"role"`
	Result       string      `json:"result"`
	BoardResult  string      `json:"board_result"`
	Material     int         `json:"material"`
	FinalHP      float64     `json:"final_hp"`
	FinalStamina float64     `json:"final_stamina"`
	FinalMorale  float64     `json:"final_morale"`
	FinalLife    float64     `json:"final_life"`
	IsKO         bool        `json:"is_ko"`
	IsDead       bool        `json:"is_dead"`
	Stats        model.Stats `json:"stats,omitempty"`
}

type SubstitutionResult struct {
	Team         string `json:"team"`
	Round        int    `json:"round"`
	ReplacedID   string `json:"replaced_id"`
	SubstituteID string `json:"substitute_id"`
}

// MatchResult is the externally serialized outcome of one match.
type MatchResult struct {
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Seed            int64  `json:"seed"`
	Day             int    `json:"day"`

	TeamAID     string  `json:"team_a_id"`
	TeamBID     string  `json:"team_b_id"`
	TeamAName   string  `json:"team_a_name"`
	TeamBName   string  `json:"team_b_name"`
	TeamAWins   int     `json:"team_a_wins"`
	TeamBWins   int     `json:"team_b_wins"`
	TeamAScore  float64 `json:"team_a_score"`
	TeamBScore  float64 `json:"team_b_score"`
	Winner      string  `json:"winner"`
	WinningTeam string  `json:"winning_team"`

	Rounds     int    `json:"rounds"`
	EndReason  string `json:"end_reason"`
	LossReason string `json:"loss_reason,omitempty"`

	CharacterResults     []CharacterResult    `json:"character_results"`
	ConvergenceCount     int                  `json:"convergence_count"`
	TraitActivationCount int                  `json:"trait_activation_count"`
	Substitutions        []SubstitutionResult `json:"substitutions"`
	Injuries             []model.InjuryRecord `json:"injuries,omitempty"`
	Faults               []matchctx.Fault     `json:"faults,omitempty"`
	FinalDigest          string               `json:"final_digest"`
}

type MoveEntry struct {
	CharacterID string `json:"character_id"`
	UCI         string `json:"uci"`
	Capture     bool   `json:"capture,omitempty"`
}

// RoundLogEntry is one line of a match's round log.
type RoundLogEntry struct {
	MatchID       string                           `json:"match_id"`
	Seed          int64                            `json:"seed"`
	Round         int                              `json:"round"`
	First         string                           `json:"first"`
	Order         []string                         `json:"order"`
	Moves         []MoveEntry                      `json:"moves"`
	Convergences  []matchctx.ConvergenceRecord     `json:"convergences"`
	Substitutions []matchctx.Substitution          `json:"substitutions,omitempty"`
	Momentum      map[string]matchctx.TeamMomentum `json:"momentum"`
	Terminated    bool                             `json:"terminated,omitempty"`
	Digest        string                           `json:"digest"`
}

// characterOutcome maps a board to win/loss/draw for the character playing it. A board still in
// progress is judged on material.
func characterOutcome(r board.Result, material int) string {
	switch r {
	case board.WhiteMates:
		return "win"
	case board.BlackMates:
		return "loss"
	case board.Stalemate, board.InsufficientMaterial, board.DrawOther:
		return "draw"
	}
	switch {
	case material > 0:
		return "win"
	case material < 0:
		return "loss"
	}
	return "draw"
}
