package model

import "fmt"

// Team is an ordered roster. Active slots never grow mid-match; substitution only retags.
type Team struct {
	ID       string
	Name     string
	Division string
	Home     bool

	Active []*Character
	Bench  []*Character
}

func (t *Team) All() []*Character {
	out := make([]*Character, 0, len(t.Active)+len(t.Bench))
	out = append(out, t.Active...)
	return append(out, t.Bench...)
}

// FieldLeader returns the character currently holding the FL slot (FL or FL-SUB), or nil.
func (t *Team) FieldLeader() *Character {
	for _, c := range t.Active {
		if c != nil && c.Role.Leads() {
			return c
		}
	}
	return nil
}

func (t *Team) KOCount() int {
	n := 0
	for _, c := range t.Active {
		if c != nil && c.IsKO {
			n++
		}
	}
	return n
}

func (t *Team) ActiveCount() int {
	n := 0
	for _, c := range t.Active {
		if c.CanAct() {
			n++
		}
	}
	return n
}

// HPTotals returns summed current and maximum HP over the active roster.
func (t *Team) HPTotals() (cur, max float64) {
	for _, c := range t.Active {
		if c == nil {
			continue
		}
		cur += c.HP
		max += c.MaxHP
	}
	return cur, max
}

func (t *Team) Validate(rosterSize int, requireFull bool) error {
	if len(t.Active) == 0 {
		return fmt.Errorf("team %s: no active characters", t.Name)
	}
	if requireFull && len(t.Active) != rosterSize {
		return fmt.Errorf("team %s: active roster has %d characters, want %d", t.Name, len(t.Active), rosterSize)
	}
	if len(t.Active) > rosterSize {
		return fmt.Errorf("team %s: active roster has %d characters, max %d", t.Name, len(t.Active), rosterSize)
	}
	seen := map[string]bool{}
	leaders := 0
	for i, c := range t.Active {
		if c == nil {
			return fmt.Errorf("team %s: nil character at slot %d", t.Name, i)
		}
		if seen[c.ID] {
			return fmt.Errorf("team %s: duplicate character %s", t.Name, c.ID)
		}
		seen[c.ID] = true
		if _, err := ParseRole(string(c.Role.Base())); err != nil {
			return fmt.Errorf("team %s: character %s: %w", t.Name, c.ID, err)
		}
		if c.Role == RoleFL {
			leaders++
		}
	}
	if leaders != 1 {
		return fmt.Errorf("team %s: want exactly one FL in active roster, got %d", t.Name, leaders)
	}
	return nil
}

func (t *Team) Clone() *Team {
	out := &Team{ID: t.ID, Name: t.Name, Division: t.Division, Home: t.Home}
	for _, c := range t.Active {
		out.Active = append(out.Active, c.Clone())
	}
	for _, c := range t.Bench {
		out.Bench = append(out.Bench, c.Clone())
	}
	return out
}
