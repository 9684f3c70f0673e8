package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// client -> server
	TypeHello    = "HELLO"
	TypeMove     = "MOVE"
	TypeHold     = "HOLD"
	TypeInteract = "INTERACT"
	TypeBreak    = "BREAK"

	// server -> client
	TypeWelcome   = "WELCOME"
	TypePlaySound = "PLAY_SOUND"
	TypeItemDrop  = "ITEM_DROP"
	TypeHeld      = "HELD"
	TypeError     = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// IsAction reports whether t is a client message routed to the world inbox.
func IsAction(t string) bool {
	switch t {
	case TypeMove, TypeHold, TypeInteract, TypeBreak:
		return true
	}
	return false
}
