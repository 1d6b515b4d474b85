package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotInjured          = errors.New("character is not injured")
	ErrInsufficientStamina = errors.New("insufficient stamina")
)

// InvariantError reports vitals left outside their legal range.
type InvariantError struct {
	CharacterID string
	Field       string
	Value       float64
}

func (e InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: character %s %s=%v", e.CharacterID, e.Field, e.Value)
}
