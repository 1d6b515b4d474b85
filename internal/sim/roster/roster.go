// Package roster reads league files (teams, rosters and the schedule) and turns them into match teams.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"metaleague.ai/internal/sim/catalogs"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/schemas"
)

var ErrBadRoster = errors.New("bad roster")

type File struct {
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	Teams           []TeamSpec `json:"teams"`
	Schedule        []Fixture  `json:"schedule,omitempty"`
}

type TeamSpec struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Division   string          `json:"division,omitempty"`
	Characters []CharacterSpec `json:"characters"`
}

type CharacterSpec struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Role       string         `json:"role"`
	Attributes map[string]int `json:"attributes,omitempty"`
	Traits     []string       `json:"traits,omitempty"`
	Bench      bool           `json:"bench,omitempty"`
}

// Fixture is one scheduled match. A nil Seed is derived from the match id.
type Fixture struct {
	Day   int    `json:"day"`
	TeamA string `json:"team_a"`
	TeamB string `json:"team_b"`
	Seed  *int64 `json:"seed,omitempty"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func leagueSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = schemas.Compile(schemas.League)
	})
	return schema, schemaErr
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse validates raw against the league schema, then decodes it and checks cross references.
func Parse(raw []byte) (*File, error) {
	s, err := leagueSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRoster, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRoster, err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRoster, err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) check() error {
	teams := map[string]bool{}
	owner := map[string]string{}
	for _, t := range f.Teams {
		if teams[t.ID] {
			return fmt.Errorf("%w: duplicate team %s", ErrBadRoster, t.ID)
		}
		teams[t.ID] = true
		for _, c := range t.Characters {
			if prev, dup := owner[c.ID]; dup {
				return fmt.Errorf("%w: character %s on both %s and %s", ErrBadRoster, c.ID, prev, t.ID)
			}
			owner[c.ID] = t.ID
		}
	}
	for i, fx := range f.Schedule {
		if !teams[fx.TeamA] || !teams[fx.TeamB] {
			return fmt.Errorf("%w: fixture %d references unknown team", ErrBadRoster, i)
		}
	}
	return nil
}

// CheckTraits rejects trait ids the catalog does not define.
func (f *File) CheckTraits(cat catalogs.TraitCatalog) error {
	for _, t := range f.Teams {
		for _, c := range t.Characters {
			for _, id := range c.Traits {
				if _, ok := cat.Get(id); !ok {
					return fmt.Errorf("%w: character %s: unknown trait %q", ErrBadRoster, c.ID, id)
				}
			}
		}
	}
	return nil
}

// Team builds a fresh model.Team for the given team id.
func (f *File) Team(id string) (*model.Team, error) {
	for _, ts := range f.Teams {
		if ts.ID == id {
			return ts.Build()
		}
	}
	return nil, fmt.Errorf("%w: unknown team %s", ErrBadRoster, id)
}

// Build turns the team entry into a model.Team. Unlisted attributes default to 5. Roster size and the
// Field Leader requirement are enforced at match setup, not here.
func (ts TeamSpec) Build() (*model.Team, error) {
	name := ts.Name
	if name == "" {
		name = ts.ID
	}
	t := &model.Team{ID: ts.ID, Name: name, Division: ts.Division}
	for _, cs := range ts.Characters {
		c, err := cs.build(ts.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: team %s: %v", ErrBadRoster, ts.ID, err)
		}
		if cs.Bench {
			t.Bench = append(t.Bench, c)
		} else {
			t.Active = append(t.Active, c)
		}
	}
	return t, nil
}

// SpecOf captures a team's roster, attributes included, so it can be rebuilt later.
func SpecOf(t *model.Team) TeamSpec {
	ts := TeamSpec{ID: t.ID, Name: t.Name, Division: t.Division}
	add := func(c *model.Character, bench bool) {
		attrs := make(map[string]int, len(model.AllAttrs))
		for _, k := range model.AllAttrs {
			attrs[string(k)] = c.Attrs.Get(k)
		}
		ts.Characters = append(ts.Characters, CharacterSpec{
			ID:         c.ID,
			Name:       c.Name,
			Role:       string(c.Role.Base()),
			Attributes: attrs,
			Traits:     append([]string(nil), c.Traits...),
			Bench:      bench,
		})
	}
	for _, c := range t.Active {
		add(c, false)
	}
	for _, c := range t.Bench {
		add(c, true)
	}
	return ts
}

func (cs CharacterSpec) build(teamID string) (*model.Character, error) {
	role, err := model.ParseRole(cs.Role)
	if err != nil {
		return nil, err
	}
	attrs := model.DefaultAttributes()
	for k, v := range cs.Attributes {
		attrs.Set(model.Attr(k), v)
	}
	return model.NewCharacter(cs.ID, cs.Name, teamID, role, attrs, cs.Traits)
}

// Fixtures returns the fixtures scheduled for day in file order.
func (f *File) Fixtures(day int) []Fixture {
	var out []Fixture
	for _, fx := range f.Schedule {
		if fx.Day == day {
			out = append(out, fx)
		}
	}
	return out
}

// Days lists the scheduled days in ascending order.
func (f *File) Days() []int {
	seen := map[int]bool{}
	var out []int
	for _, fx := range f.Schedule {
		if !seen[fx.Day] {
			seen[fx.Day] = true
			out = append(out, fx.Day)
		}
	}
	sort.Ints(out)
	return out
}
