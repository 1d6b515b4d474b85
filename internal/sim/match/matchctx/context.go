package matchctx

import (
	"fmt"
	"log"
	"math/rand"

	"metaleague.ai/internal/sim/match/model"
)

// Context is the per-match mutable record shared by every component of one match's round loop.
// It is not safe for use outside that synchronous call chain.
type Context struct {
	MatchID string
	Seed    int64
	Day     int
	Round   int

	Convergences  []ConvergenceRecord
	TraitLog      []TraitActivation
	Substitutions []Substitution
	Faults        []Fault

	Momentum map[string]*TeamMomentum
	// Score is the running board-result tally per team id.
	Score map[string]float64

	rng       *rand.Rand
	logger    *log.Logger
	cooldowns map[string]int
}

type TeamMomentum struct {
	Value          float64             `json:"value"`
	State          model.MomentumState `json:"state"`
	Comeback       bool                `json:"comeback"`
	TraitBonus     float64             `json:"trait_bonus"`
	ReductionBonus float64             `json:"reduction_bonus"`
	DamageBonus    float64             `json:"damage_bonus"`
}

type Participant struct {
	CharacterID string  `json:"character_id"`
	TeamID      string  `json:"team_id"`
	Roll        float64 `json:"roll"`
	TraitBonus  float64 `json:"trait_bonus,omitempty"`
}

type DamageEntry struct {
	CharacterID  string  `json:"character_id"`
	Raw          int     `json:"raw"`
	ReductionPct float64 `json:"reduction_pct"`
	Actual       float64 `json:"actual"`
	KO           bool    `json:"ko,omitempty"`
}

type ConvergenceRecord struct {
	Round      int           `json:"round"`
	Square     string        `json:"square"`
	A          []Participant `json:"a"`
	B          []Participant `json:"b"`
	RollA      float64       `json:"roll_a"`
	RollB      float64       `json:"roll_b"`
	Winner     string        `json:"winner"` // "A" or "B"
	BaseDamage int           `json:"base_damage"`
	PerLoser   int           `json:"per_loser"`
	Damage     []DamageEntry `json:"damage,omitempty"`
	Critical   bool          `json:"critical,omitempty"`
}

type TraitActivation struct {
	Round       int     `json:"round"`
	CharacterID string  `json:"character_id"`
	TraitID     string  `json:"trait_id"`
	Trigger     string  `json:"trigger"`
	Effect      string  `json:"effect"`
	Value       float64 `json:"value"`
}

type Substitution struct {
	Round        int    `json:"round"`
	TeamID       string `json:"team_id"`
	Team         string `json:"team"`
	ReplacedID   string `json:"replaced_id"`
	SubstituteID string `json:"substitute_id"`
}

// Fault is a per-entity failure recovered by skipping the entity for one round.
type Fault struct {
	Round  int    `json:"round"`
	Entity string `json:"entity"`
	Reason string `json:"reason"`
}

func New(matchID string, seed int64, logger *log.Logger) *Context {
	return &Context{
		MatchID:   matchID,
		Seed:      seed,
		Momentum:  map[string]*TeamMomentum{},
		Score:     map[string]float64{},
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger,
		cooldowns: map[string]int{},
	}
}

// Rand is the single source of randomness for the match.
func (c *Context) Rand() *rand.Rand { return c.rng }

func (c *Context) Logger() *log.Logger { return c.logger }

func (c *Context) Logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf("match=%s round=%d "+format, append([]any{c.MatchID, c.Round}, args...)...)
}

func (c *Context) Fault(entity, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	c.Faults = append(c.Faults, Fault{Round: c.Round, Entity: entity, Reason: reason})
	c.Logf("skip %s: %s", entity, reason)
}

func (c *Context) MomentumOf(teamID string) TeamMomentum {
	if m := c.Momentum[teamID]; m != nil {
		return *m
	}
	return TeamMomentum{State: model.MomentumStable}
}

func (c *Context) OnCooldown(characterID, traitID string) bool {
	until, ok := c.cooldowns[characterID+"|"+traitID]
	return ok && c.Round < until
}

func (c *Context) StartCooldown(characterID, traitID string, rounds int) {
	if rounds <= 0 {
		return
	}
	c.cooldowns[characterID+"|"+traitID] = c.Round + rounds + 1
}

func (c *Context) RecordTrait(a TraitActivation) {
	a.Round = c.Round
	c.TraitLog = append(c.TraitLog, a)
}
