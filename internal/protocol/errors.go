package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Match setup.
	ErrBadRoster = "E_BAD_ROSTER"
	ErrConfig    = "E_CONFIG"

	// Match execution.
	ErrMatchFailed   = "E_MATCH_FAILED"
	ErrMatchNotFound = "E_MATCH_NOT_FOUND"
	ErrCharacterBusy = "E_CHARACTER_BUSY"
	ErrStorage       = "E_STORAGE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRoster:       {},
	ErrConfig:          {},
	ErrMatchFailed:     {},
	ErrMatchNotFound:   {},
	ErrCharacterBusy:   {},
	ErrStorage:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
