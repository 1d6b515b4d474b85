package ledger

import (
	"context"
	"fmt"

	"metaleague.ai/internal/sim/match/model"
)

// Store persists the cross-match ledgers. It is consulted only at checkpoints (match end, day end).
type Store interface {
	LoadInjury(ctx context.Context, characterID string) (model.InjuryRecord, bool, error)
	SaveInjury(ctx context.Context, rec model.InjuryRecord) error
	DeleteInjury(ctx context.Context, characterID string) error
	LoadStamina(ctx context.Context, characterID string) (float64, bool, error)
	SaveStamina(ctx context.Context, characterID string, stamina float64) error
	LoadMorale(ctx context.Context, characterID string) (float64, bool, error)
	SaveMorale(ctx context.Context, characterID string, morale float64) error
}

// LoadCarryover reads persisted state for chars into book and returns the carryover per character id.
func LoadCarryover(ctx context.Context, st Store, book *InjuryBook, chars []*model.Character) (map[string]Carryover, error) {
	out := make(map[string]Carryover, len(chars))
	for _, c := range chars {
		var carry Carryover
		rec, ok, err := st.LoadInjury(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load injury %s: %w", c.ID, err)
		}
		if ok {
			book.Put(rec)
		}
		if v, ok, err := st.LoadStamina(ctx, c.ID); err != nil {
			return nil, fmt.Errorf("load stamina %s: %w", c.ID, err)
		} else if ok {
			carry.Stamina = &v
		}
		if v, ok, err := st.LoadMorale(ctx, c.ID); err != nil {
			return nil, fmt.Errorf("load morale %s: %w", c.ID, err)
		} else if ok {
			carry.Morale = &v
		}
		out[c.ID] = carry
	}
	return out, nil
}

// SaveCheckpoint writes chars' banked stamina, morale and injury state.
func SaveCheckpoint(ctx context.Context, st Store, book *InjuryBook, chars []*model.Character) error {
	for _, c := range chars {
		if err := st.SaveStamina(ctx, c.ID, c.Stamina); err != nil {
			return fmt.Errorf("save stamina %s: %w", c.ID, err)
		}
		if err := st.SaveMorale(ctx, c.ID, c.Morale); err != nil {
			return fmt.Errorf("save morale %s: %w", c.ID, err)
		}
		if rec, ok := book.Get(c.ID); ok {
			if err := st.SaveInjury(ctx, rec); err != nil {
				return fmt.Errorf("save injury %s: %w", c.ID, err)
			}
		} else if err := st.DeleteInjury(ctx, c.ID); err != nil {
			return fmt.Errorf("delete injury %s: %w", c.ID, err)
		}
	}
	return nil
}
