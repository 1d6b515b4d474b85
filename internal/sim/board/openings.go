package board

import "math/rand"

// RoleOpenings are short SAN lines played on a fresh board, keyed by base role.
var RoleOpenings = map[string][][]string{
	"FL": {{"e4"}, {"d4"}, {"c4"}},
	"RG": {{"Nf3"}, {"g3"}, {"b3"}},
	"VG": {{"e4", "e5", "Nf3"}, {"d4", "d5", "c4"}},
	"EN": {{"c4"}, {"d4", "d5"}, {"e4", "c5"}},
	"GO": {{"g3"}, {"b3"}, {"c4"}},
	"PO": {{"d4", "Nf6"}, {"e4", "e6"}, {"c4", "c5"}},
	"SV": {{"e4", "e5", "Nf3", "Nc6"}, {"d4", "d5", "c4", "e6"}},
}

// OpeningFor picks one of the role's openings. Unknown roles get none.
func OpeningFor(role string, rng *rand.Rand) []string {
	lines := RoleOpenings[role]
	if len(lines) == 0 {
		return nil
	}
	line := lines[rng.Intn(len(lines))]
	return append([]string(nil), line...)
}
