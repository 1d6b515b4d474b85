package protocol

import "encoding/json"

// SUBSCRIBE (observer -> server). An empty MatchID follows every match.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id,omitempty"`
}

// SUBSCRIBED (server -> observer)
type SubscribedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id,omitempty"`
	SubscriberID    string `json:"subscriber_id"`
}

// ROUND (server -> observer): one round log entry.
type RoundMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	MatchID         string          `json:"match_id"`
	Round           int             `json:"round"`
	Entry           json.RawMessage `json:"entry"`
}

// RESULT (server -> observer): the final match result.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	MatchID         string          `json:"match_id"`
	Result          json.RawMessage `json:"result"`
}

// ERROR (server -> observer)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
	MatchID         string `json:"match_id,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
