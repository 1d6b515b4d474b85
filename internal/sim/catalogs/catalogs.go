package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Catalogs struct {
	Traits TraitCatalog
}

type TraitCatalog struct {
	ByID   map[string]TraitDef
	IDs    []string // sorted
	Digest string
}

// TraitDef is one named trait and its numeric payload.
type TraitDef struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "combat","defense","support","utility"
	Triggers    []string `json:"triggers"`
	Effect      string   `json:"effect"` // effect kind emitted on activation
	Value       float64  `json:"value"`
	StaminaCost float64  `json:"stamina_cost,omitempty"`
	Cooldown    int      `json:"cooldown,omitempty"` // rounds
	Chance      float64  `json:"chance,omitempty"`   // activation chance in percent; 0 means always
	Description string   `json:"description,omitempty"`
}

var effectKinds = map[string]struct{}{
	"damage_reduction": {},
	"combat_bonus":     {},
	"heal":             {},
	"stamina_cost":     {},
	"morale_change":    {},
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadTraits(filepath.Join(configDir, "traits.json"), &c.Traits); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadTraits(path string, out *TraitCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// A league without trait content runs with an empty catalog.
		if os.IsNotExist(err) {
			*out = TraitCatalog{ByID: map[string]TraitDef{}, Digest: sha256Hex(nil)}
			return nil
		}
		return err
	}
	var defs []TraitDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("traits.json: %w", err)
	}
	cat, err := NewTraitCatalog(defs)
	if err != nil {
		return fmt.Errorf("traits.json: %w", err)
	}
	cat.Digest = sha256Hex(raw)
	*out = cat
	return nil
}

// NewTraitCatalog indexes trait definitions. The digest covers the canonical JSON of the sorted set.
func NewTraitCatalog(defs []TraitDef) (TraitCatalog, error) {
	cat := TraitCatalog{ByID: make(map[string]TraitDef, len(defs))}
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return cat, fmt.Errorf("empty trait id")
		}
		if _, dup := cat.ByID[d.ID]; dup {
			return cat, fmt.Errorf("duplicate trait id %q", d.ID)
		}
		if _, ok := effectKinds[d.Effect]; !ok {
			return cat, fmt.Errorf("trait %s: unknown effect %q", d.ID, d.Effect)
		}
		if len(d.Triggers) == 0 {
			return cat, fmt.Errorf("trait %s: no triggers", d.ID)
		}
		if d.Chance < 0 || d.Chance > 100 {
			return cat, fmt.Errorf("trait %s: chance out of range: %v", d.ID, d.Chance)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		cat.ByID[d.ID] = d
		cat.IDs = append(cat.IDs, d.ID)
	}
	sort.Strings(cat.IDs)

	sorted := make([]TraitDef, 0, len(cat.IDs))
	for _, id := range cat.IDs {
		sorted = append(sorted, cat.ByID[id])
	}
	b, _ := json.Marshal(sorted)
	cat.Digest = sha256Hex(b)
	return cat, nil
}

func (c TraitCatalog) Get(id string) (TraitDef, bool) {
	d, ok := c.ByID[id]
	return d, ok
}

func (d TraitDef) HasTrigger(trigger string) bool {
	for _, t := range d.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}
