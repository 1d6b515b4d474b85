package model

type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityModerate Severity = "MODERATE"
	SeverityMajor    Severity = "MAJOR"
	SeveritySevere   Severity = "SEVERE"
)

var Severities = []Severity{SeverityMinor, SeverityModerate, SeverityMajor, SeveritySevere}

// InjuryRecord is the cross-match injury state of one character.
// Penalties holds the attribute deltas actually applied, so reverting restores the exact prior values.
type InjuryRecord struct {
	CharacterID      string       `json:"character_id"`
	Severity         Severity     `json:"severity"`
	MatchesRemaining int          `json:"matches_remaining"`
	Penalties        map[Attr]int `json:"penalties,omitempty"`
	Cause            string       `json:"cause,omitempty"`
}

func (r InjuryRecord) Clone() InjuryRecord {
	out := r
	if r.Penalties != nil {
		out.Penalties = make(map[Attr]int, len(r.Penalties))
		for k, v := range r.Penalties {
			out.Penalties[k] = v
		}
	}
	return out
}

// DefaultPenalties lists the attribute deltas for each severity.
func DefaultPenalties(s Severity) map[Attr]int {
	switch s {
	case SeverityMinor:
		return map[Attr]int{SPD: -1}
	case SeverityModerate:
		return map[Attr]int{SPD: -1, STR: -1}
	case SeverityMajor:
		return map[Attr]int{STR: -2, SPD: -2, DUR: -1}
	case SeveritySevere:
		return map[Attr]int{STR: -3, SPD: -3, DUR: -2, FS: -1}
	}
	return nil
}
