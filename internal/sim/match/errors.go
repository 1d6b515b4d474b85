package match

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig matches every ConfigError.
	ErrConfig             = errors.New("match config")
	ErrNoActiveCharacters = errors.New("team has no active characters")
	ErrRosterSize         = errors.New("wrong active roster size")
	ErrSameTeam           = errors.New("team cannot play itself")
	ErrNoAdapter          = errors.New("no board adapter")
	ErrTerminated         = errors.New("match already terminated")
)

// ConfigError is a setup failure. The match never reaches round 1.
type ConfigError struct {
	Team string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Team == "" {
		return fmt.Sprintf("match config: %v", e.Err)
	}
	return fmt.Sprintf("match config: team %s: %v", e.Team, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
