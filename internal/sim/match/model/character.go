package model

import (
	"errors"
	"fmt"
	"strings"
)

// Character is one combatant. Vitals are mutated only through the ledger.
type Character struct {
	ID       string
	Name     string
	TeamID   string
	Role     Role
	Division Division
	Index    int // position in the team roster; stable tie-break key

	Attrs  Attributes
	Traits []string

	HP         float64
	MaxHP      float64
	Stamina    float64
	MaxStamina float64
	Life       float64
	Morale     float64

	IsKO     bool
	IsDead   bool
	IsActive bool
	Injury   *InjuryRecord

	// Per-match transient state.
	MomentumState         MomentumState
	MomentumValue         float64
	ConvergencesThisRound int
	Stats                 Stats
	Result                string
	LastRegenRound        int
	LastDecayRound        int
}

func NewCharacter(id, name, teamID string, role Role, attrs Attributes, traits []string) (*Character, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("character: empty id")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("character %s: %w", id, err)
	}
	attrs.Normalize()
	c := &Character{
		ID:         id,
		Name:       name,
		TeamID:     teamID,
		Role:       role,
		Division:   DivisionOf(role),
		Attrs:      attrs,
		Traits:     append([]string(nil), traits...),
		HP:         100,
		MaxHP:      100,
		Stamina:    100,
		MaxStamina: 100,
		Life:       100,
		Morale:     5,
		IsActive:   true,
		Stats:      Stats{},
	}
	if c.Name == "" {
		c.Name = id
	}
	return c, nil
}

// CanAct reports whether the character may move or initiate a convergence.
func (c *Character) CanAct() bool {
	return c != nil && c.IsActive && !c.IsKO && !c.IsDead
}

func (c *Character) HasTrait(id string) bool {
	for _, t := range c.Traits {
		if t == id {
			return true
		}
	}
	return false
}

func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	out := *c
	out.Traits = append([]string(nil), c.Traits...)
	out.Stats = make(Stats, len(c.Stats))
	for k, v := range c.Stats {
		out.Stats[k] = v
	}
	if c.Injury != nil {
		rec := c.Injury.Clone()
		out.Injury = &rec
	}
	return &out
}
