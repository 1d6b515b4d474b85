package ledger

import (
	"math"
	"sort"

	"metaleague.ai/internal/sim/match/matchctx"
	"metaleague.ai/internal/sim/match/model"
)

var severityRank = map[model.Severity]int{
	model.SeverityMinor:    1,
	model.SeverityModerate: 2,
	model.SeverityMajor:    3,
	model.SeveritySevere:   4,
}

// InjuryBook is the persistent cross-match injury ledger keyed by character id.
type InjuryBook struct {
	records map[string]model.InjuryRecord
}

func NewInjuryBook() *InjuryBook {
	return &InjuryBook{records: map[string]model.InjuryRecord{}}
}

func (b *InjuryBook) Len() int { return len(b.records) }

func (b *InjuryBook) Get(characterID string) (model.InjuryRecord, bool) {
	rec, ok := b.records[characterID]
	if !ok {
		return model.InjuryRecord{}, false
	}
	return rec.Clone(), true
}

// Put stores a record as-is (used when loading from durable storage).
func (b *InjuryBook) Put(rec model.InjuryRecord) {
	if rec.CharacterID == "" || rec.MatchesRemaining <= 0 {
		return
	}
	b.records[rec.CharacterID] = rec.Clone()
}

// Records returns every record sorted by character id.
func (b *InjuryBook) Records() []model.InjuryRecord {
	ids := make([]string, 0, len(b.records))
	for id := range b.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.InjuryRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.records[id].Clone())
	}
	return out
}

// Subset copies the records of ids into a new book, so a match can run against its own copy.
func (b *InjuryBook) Subset(ids []string) *InjuryBook {
	out := NewInjuryBook()
	for _, id := range ids {
		if rec, ok := b.records[id]; ok {
			out.records[id] = rec.Clone()
		}
	}
	return out
}

// Replace overwrites the records of ids with those in sub. Ids sub does not hold are healed.
func (b *InjuryBook) Replace(sub *InjuryBook, ids []string) {
	for _, id := range ids {
		if rec, ok := sub.records[id]; ok {
			b.records[id] = rec.Clone()
		} else {
			delete(b.records, id)
		}
	}
}

// Assign injures c and applies the severity's attribute penalties.
// A worse injury replaces a lighter one; an equal or lighter one only extends the duration.
func (b *InjuryBook) Assign(c *model.Character, sev model.Severity, matches int, cause string) model.InjuryRecord {
	if cur, ok := b.records[c.ID]; ok {
		if severityRank[sev] <= severityRank[cur.Severity] {
			if matches > cur.MatchesRemaining {
				cur.MatchesRemaining = matches
			}
			b.records[c.ID] = cur
			rec := cur.Clone()
			c.Injury = &rec
			return cur.Clone()
		}
		revert(c, cur)
	}
	rec := model.InjuryRecord{
		CharacterID:      c.ID,
		Severity:         sev,
		MatchesRemaining: matches,
		Cause:            cause,
	}
	rec.Penalties = applyPenalties(c, model.DefaultPenalties(sev))
	b.records[c.ID] = rec
	cp := rec.Clone()
	c.Injury = &cp
	return rec.Clone()
}

// ApplyTo re-applies a stored record to a freshly built character.
func (b *InjuryBook) ApplyTo(c *model.Character) bool {
	rec, ok := b.records[c.ID]
	if !ok || c.Injury != nil {
		return false
	}
	rec.Penalties = applyPenalties(c, rec.Penalties)
	b.records[c.ID] = rec
	cp := rec.Clone()
	c.Injury = &cp
	return true
}

// AdvanceMatchday decrements every record by one matchday. Records reaching zero are removed and
// their penalties reverted on the matching character in chars (when present). Returns healed ids.
func (b *InjuryBook) AdvanceMatchday(chars []*model.Character) []string {
	ids := make([]string, 0, len(b.records))
	for _, rec := range b.Records() {
		ids = append(ids, rec.CharacterID)
	}
	return b.Advance(ids, chars)
}

// Advance is AdvanceMatchday restricted to the records of ids. Ids without a record are ignored.
func (b *InjuryBook) Advance(ids []string, chars []*model.Character) []string {
	byID := make(map[string]*model.Character, len(chars))
	for _, c := range chars {
		if c != nil {
			byID[c.ID] = c
		}
	}
	var healed []string
	for _, id := range ids {
		rec, ok := b.records[id]
		if !ok {
			continue
		}
		rec.MatchesRemaining--
		c := byID[id]
		if rec.MatchesRemaining <= 0 {
			if c != nil && c.Injury != nil {
				revert(c, rec)
			}
			delete(b.records, id)
			healed = append(healed, id)
			continue
		}
		b.records[id] = rec
		if c != nil && c.Injury != nil {
			c.Injury.MatchesRemaining = rec.MatchesRemaining
		}
	}
	return healed
}

// reduceOne shortens a record by one match, healing it outright at zero.
func (b *InjuryBook) reduceOne(c *model.Character) (remaining int) {
	rec, ok := b.records[c.ID]
	if !ok {
		return 0
	}
	rec.MatchesRemaining--
	if rec.MatchesRemaining <= 0 {
		if c.Injury != nil {
			revert(c, rec)
		}
		delete(b.records, c.ID)
		return 0
	}
	b.records[c.ID] = rec
	if c.Injury != nil {
		c.Injury.MatchesRemaining = rec.MatchesRemaining
	}
	return rec.MatchesRemaining
}

func applyPenalties(c *model.Character, penalties map[model.Attr]int) map[model.Attr]int {
	applied := map[model.Attr]int{}
	for _, k := range model.AllAttrs {
		d, ok := penalties[k]
		if !ok || d == 0 {
			continue
		}
		if got := c.Attrs.Add(k, d); got != 0 {
			applied[k] = got
		}
	}
	return applied
}

func revert(c *model.Character, rec model.InjuryRecord) {
	for _, k := range model.AllAttrs {
		if d, ok := rec.Penalties[k]; ok {
			c.Attrs.Add(k, -d)
		}
	}
	c.Injury = nil
}

// RollInjury decides whether a character leaves the match injured.
// DUR lowers the chance, RES lowers the severity and SBY shortens the recovery.
func (l *Ledger) RollInjury(c *model.Character, book *InjuryBook, ctx *matchctx.Context) *model.InjuryRecord {
	if c == nil || c.IsDead || (!c.IsActive && !c.IsKO) {
		return nil
	}
	in := l.tune.Injury
	var chance float64
	switch {
	case c.IsKO:
		chance = in.KOChance
	case c.HP < in.LowHPThreshold:
		chance = in.LowHPChance
	default:
		return nil
	}
	chance *= math.Max(0, 1-in.DurPerPoint*float64(c.Attrs.DUR-model.AttrDefault))
	if ctx.Rand().Float64() >= chance {
		return nil
	}

	score := ctx.Rand().Float64() - in.ResPerPoint*float64(c.Attrs.RES-model.AttrDefault)
	sev := model.SeveritySevere
	switch {
	case score < 0.45:
		sev = model.SeverityMinor
	case score < 0.75:
		sev = model.SeverityModerate
	case score < 0.93:
		sev = model.SeverityMajor
	}

	base := float64(in.Durations[string(sev)])
	matches := int(math.Ceil(base * math.Max(0.4, 1-in.SbyPerPoint*float64(c.Attrs.SBY-model.AttrDefault))))
	if matches < 1 {
		matches = 1
	}
	cause := "low_hp"
	if c.IsKO {
		cause = "ko"
	}
	rec := book.Assign(c, sev, matches, cause)
	return &rec
}
