package model

// rStat keys. Division-specific variants carry an "o" (operations) or "i" (intelligence) suffix.
const (
	StatDamageDealt     = "rDD"
	StatDamageSustained = "rDS"
	StatTakedowns       = "rOTD"
	StatAssists         = "rAST"
	StatConvergenceWins = "rCV"
	StatConvergenceLoss = "rCVL"
	StatUltimate        = "rULT"
	StatTimesKOd        = "rKO"
	StatRecoveries      = "rREC"
	StatLifeLost        = "rLLS"
	StatMoves           = "rMOV"
	StatCaptures        = "rCAP"
	StatPiecesLost      = "rPLS"
	StatTraitActivation = "rTRA"
	StatHealing         = "rHLG"
)

type Stats map[string]int

func (s Stats) Add(key string, n int) {
	if n == 0 {
		return
	}
	s[key] += n
}

// DivisionKey returns the division-specific variant of a stat key.
func DivisionKey(key string, d Division) string {
	if d == DivisionOperations {
		return key + "o"
	}
	return key + "i"
}
